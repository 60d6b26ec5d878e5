// Package machine holds the two deterministic timer state machines that
// drive accountability check-ins and hyperfocus hard-stops. Neither machine
// consults a model or any store: transitions are pure bookkeeping plus a
// cancellable background schedule that publishes bus events.
//
// Machine sessions are deliberately volatile. A process restart loses any
// in-flight timer; durability for timers is an explicit non-goal.
//
// Both machines take a TickScale option defining the wall-clock length of
// one scheduling "minute". The default is time.Minute; demos and tests
// compress it (e.g. 10ms) without touching the transition logic.
package machine
