// Package process launches external processes and captures their output.
//
// A run starts the child with both output streams redirected into pipes,
// drains each stream line by line in its own goroutine and races the
// process exit against a deadline (Execute) or a cancellation
// (ExecuteContext, ExecuteAsync):
//
//	Handler.execute        drains               exitWatch / race
//	      |                  |                        |
//	  Start() ------------> stdout, stderr            |
//	      | ------------------------------------> Wait() + timer/poll
//	      |<------------------------------------- exited | expired
//	 exited: wait for drains (bounded by the flush timeout), read exit code
//	 expired: Kill(), reap, wait for drains, mark as killed
//
// Invariants:
//   - Each run returns exactly one Result: completed or killed, never both.
//   - A launch failure is not an error, it is a Result with WasStarted
//     false and the reason in Errors.
//   - Lines keep their order within a stream; stdout and stderr are not
//     ordered against each other.
//   - Pipes and the process handle are released before the call returns.
//   - The argument string is never interpreted by a shell.
//
// Cancellation is polled: ExecuteContext notices a cancelled context at most
// one poll interval (100ms by default) late.
package process
