/*
Package host wires the privileged host together and runs its lifecycle.

Startup order:

	config → logger → metrics → supervisor → prefs → window → bridge → injector → server

Run starts the telemetry worker, registers the injector as the window's
content-ready handler and loads the content page. Every page load starts a new
injection cycle bound to that page's context, so a reload abandons the
previous cycle. Run returns when its context is cancelled or the window quits,
either through the quit capability or POST /quit.

Shutdown stops the worker and waits up to its grace period, closes the window,
drains the control server and flushes preferences.
*/
package host
