// Package app is the composition root of pickdesk.
//
// New wires the batch client, the list view, the realtime socket, the event
// router, the reconciler, the undo toast, assisted picking, the card overlay
// and the preference store into a Desk. The Desk also carries the operator
// actions the UI invokes (pick, mark missing, reserve a set, ...).
//
// # Data flow
//
//	socket ──> realtime.Conn ──> events.Router ─┬─> reconcile.Reconciler ──> view.Model
//	                                            └─> view.Model (reservation badges)
//
//	operator action ──> pickapi.Client ──> view.Model, counts, toast
//
// Failures in the sync path are logged and never returned; a lost row update
// is recovered by the next notification or refresh. Operator actions return
// their errors so the UI can show them.
package app
