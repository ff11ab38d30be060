/*
Package window is the headless display surface.

A Window loads the content file into a sandbox.Page, one page per content
load. Loading again closes the previous page before the new one is built, so
polling and timers left behind by old scripts never reach the new content.

Navigation policy is fixed: in-window navigation is always refused with
ErrNavigationBlocked, and window.open is always denied in-window. URLs on the
external allow-list are handed to the system browser.

F11 and Alt+Enter toggle fullscreen before the page sees the key.
*/
package window
