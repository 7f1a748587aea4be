// This package contains all the Discord Interaction handlers
//
// There should be 2 functions per handler, one for adding the handler &
// information to send to Discord (public), and one for handling the
// interaction (private or a method).
//
// Button handlers are registered by custom ID prefix, see
// `utils.EncodeActionToken`.
//
// Only return errors when it's the backend's fault, nil if user's fault.
package handler
