// Package wire defines the JSON shapes shared by the server and its clients:
// the {kind, value} event envelope pushed over subscriptions and the small
// request/response bodies of the REST surface. Room and message snapshots
// are domain.Room and domain.Message serialized as-is.
package wire
