// Package panel holds the client-side state of an ANC control panel and the
// rules for keeping it in sync with the backend.
//
// A Panel merges polled status snapshots into local State field by field,
// keeps a bounded log of received notifications, applies user actions
// through the REST API (toggling optimistically and reverting on failure)
// and raises alerts for emergencies and high-severity notifications.
//
// Poller drives a Panel on the usual cadence: status every second and
// notifications every two seconds.
package panel
