/*
Package extension discovers user extension modules and injects them into pages.

Modules are the regular files directly inside the extension directory whose
names end in the configured suffix. They are loaded in byte-wise file name
order, one at a time, into each freshly loaded page:

	mods/
	  01_hud.js        order 0
	  02_keys.js       order 1
	  zz_debug.js      order 2

A module that cannot be read, or that throws while evaluating, is marked
Failed and the cycle continues with the next one. Sources that are not UTF-8
are transcoded; binary files are refused.

Every cycle gets a fresh set of descriptors. Nothing carries over between
page loads.
*/
package extension
