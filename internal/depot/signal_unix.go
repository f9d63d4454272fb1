package depot

import "syscall"

// reconfigureSignal is SIGHUP's platform-appropriate primitive per the
// spec: the one asynchronous signal the watcher observes.
const reconfigureSignal = syscall.SIGHUP
