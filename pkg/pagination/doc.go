// Package pagination drives one scrape request from validation to its
// terminal event.
//
// A Driver walks the requested page range sequentially. Each page gets a
// fresh browser session from the session.Manager; the session is closed
// before the page's entries are emitted and before the next page loads:
//
//	Init → LoadingPage → (Retrying)? → CheckingCards → Extracting →
//	Emitting → Advancing → {LoadingPage | Terminated}
//
// Example usage:
//
//	manager := session.NewManager(browser)
//	driver := pagination.NewDriver(manager, pagination.DefaultConfig())
//	err := driver.Run(ctx, req, stream.NewSSEWriter(w))
//
// Termination:
//   - the page range is exhausted: done
//   - a page still shows no card after one reload: warning, then done
//   - validation, navigation or extraction fails: error
//
// Every request ends with exactly one terminal event unless the sink
// itself failed.
package pagination
