/*
Package sandbox runs extension scripts against the loaded content.

# Overview

A Page is one content load of the display surface. It owns a goja runtime and
a goquery document, and a single loop goroutine performs every VM access:
injected scripts, timer callbacks, event listeners, mutation watchers and the
resolution of async capability calls are all jobs on that loop.

# Globals

Scripts see a browser-like surface:

  - window (the global object), document, console
  - setTimeout, setInterval, clearTimeout, clearInterval
  - performance.now(), localStorage
  - bridge, the frozen set of host capabilities

require, process, module and exports are undefined.

document adds two hooks beyond the usual selectors:

	document.waitFor("#stage", {interval: 250, attempts: 20})
		.then(el => el.style.setProperty("opacity", "1"))
		.catch(err => console.warn(err.message))

	const stop = document.watch("#stage", rec => console.log(rec.type, rec.property))

# Lifetime

Close cancels the page context, stops every timer and interrupts a running
script. Nothing scheduled by the page runs after Close returns, which is how
a reload abandons polling left over from the previous content load.

# Limits

Top-level injection is bounded by Config.InjectTimeout and each callback by
Config.CallbackTimeout. An exceeded bound interrupts the VM and surfaces as a
*ScriptError with Interrupted set.
*/
package sandbox
