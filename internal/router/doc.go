// Package router delivers addressed events between engines.
//
// A Router maps engine names to inboxes. Registration happens during
// startup; once Seal is called the name table is frozen and Route only reads
// it. Delivery never blocks and never waits for the target to process the
// event.
//
// Every send reports one of three outcomes:
//   - Delivered: the event is in the target's inbox
//   - UnknownTarget: no inbox is registered under that name
//   - Disconnected: the inbox exists but its owner has stopped
//
// Neither failure is an error. Callers that care (the periodic timer) act on
// the outcome; action emissions ignore it.
package router
