// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing sessions, session events and history
// samples. They are not intended for production usage.
package testutil
