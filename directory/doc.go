// Package directory holds the user, group and task services.
//
// UserService keeps a read-model cache coherent with the store: reads consult
// the cache before the store, every successful write refreshes the entry for
// the written user, and a delete evicts the entry only after the store delete
// has committed. Membership changes and delete cascades go through a
// membership.Coordinator and run in the same store transaction as the delete
// they belong to.
//
// Every failure returned by a service is an apperr kind (NotFound,
// AlreadyExists, InvalidInput) or an internal go-errors value wrapping a store
// failure. When the context carries a request id it is attached to the error.
package directory
