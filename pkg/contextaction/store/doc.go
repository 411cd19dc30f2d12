/*
Package store provides named, versioned, observable values and a registry
that groups them.

# Store

A Store holds one value of type T. Writes deep-copy their input and compare
it with the current value; writes the comparator considers equal are dropped
without bumping the version or notifying anyone:

	counter := store.New("counter", 0)
	unsub := counter.Subscribe(func() {
	    fmt.Println("now", counter.GetSnapshot().Value)
	})
	defer unsub()

	counter.SetValue(0) // equal, nothing happens
	counter.SetValue(1) // listener runs
	counter.Update(func(n int) int { return n + 1 })

GetSnapshot returns the same pointer until the value changes, which is the
contract pull-based consumers rely on. GetValue returns a deep copy.

Comparison resolves in this order: a typed comparator set with
SetCustomComparator, per-store options from WithComparison or
SetComparisonOptions, then the defaults of the store's compare.Engine.

# Notification

Immediate stores notify synchronously after the write. Batched stores hand a
single flush to their Scheduler, so any number of writes before the flush
runs produce one notification. ManualScheduler makes the tick explicit:

	sched := store.NewManualScheduler()
	s := store.New("cart", Cart{}, store.WithNotificationMode(store.Batched), store.WithScheduler(sched))
	s.SetValue(a)
	s.SetValue(b)
	sched.Flush() // listeners run once

No ordering is promised between notifications of different stores.

# Copying

Values implementing Cloner[T] copy themselves. Others are copied by
reflection: maps, slices, arrays, pointers and exported struct fields are
duplicated with aliasing and cycles preserved, while funcs, chans and
unexported fields are carried over as they are.

# Registry

Registry maps names to stores in registration order, keeps metadata per name
and notifies its own listeners when membership changes. Lookup recovers the
typed store:

	reg := store.NewRegistry("app")
	_ = reg.Register("counter", counter, &store.Metadata{Tags: []string{"ui"}})
	c, ok := store.Lookup[int](reg, "counter")
*/
package store
