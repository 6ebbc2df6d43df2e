// File: task/combinators.go
// Package task
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Composition of poll-based futures: sequencing, pairing, racing and
// cooperative yielding. Tasks are step functions, not coroutines, so
// these combinators are how larger computations are assembled.

package task

// Ready returns a future that completes immediately with v.
func Ready[T any](v T) Future[T] {
	return FutureFunc[T](func(*Ctx) (T, bool, error) {
		return v, true, nil
	})
}

// Fail returns a future that completes immediately with err.
func Fail[T any](err error) Future[T] {
	return FutureFunc[T](func(*Ctx) (T, bool, error) {
		var zero T
		return zero, true, err
	})
}

// Yield suspends once and resumes on the next scheduler pass, letting
// other ready tasks run. No ordering among them is guaranteed.
func Yield() Future[struct{}] {
	first := true
	return FutureFunc[struct{}](func(ctx *Ctx) (struct{}, bool, error) {
		if first {
			first = false
			ctx.Waker().Wake()
			return struct{}{}, false, nil
		}
		return struct{}{}, true, nil
	})
}

// Then sequences two futures: when f completes with a value, fn builds
// the continuation. Errors from f short-circuit.
func Then[A, B any](f Future[A], fn func(A) Future[B]) Future[B] {
	var cont Future[B]
	return FutureFunc[B](func(ctx *Ctx) (B, bool, error) {
		var zero B
		if cont == nil {
			v, done, err := f.Poll(ctx)
			if !done {
				return zero, false, nil
			}
			if err != nil {
				return zero, true, err
			}
			cont = fn(v)
		}
		return cont.Poll(ctx)
	})
}

// Pair carries the two results of Join2.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Join2 runs two futures concurrently within one task and completes
// when both have completed. The first error observed completes the
// join immediately.
func Join2[A, B any](fa Future[A], fb Future[B]) Future[Pair[A, B]] {
	var (
		aDone, bDone bool
		a            A
		b            B
	)
	return FutureFunc[Pair[A, B]](func(ctx *Ctx) (Pair[A, B], bool, error) {
		var zero Pair[A, B]
		if !aDone {
			v, done, err := fa.Poll(ctx)
			if err != nil {
				return zero, true, err
			}
			if done {
				aDone, a = true, v
			}
		}
		if !bDone {
			v, done, err := fb.Poll(ctx)
			if err != nil {
				return zero, true, err
			}
			if done {
				bDone, b = true, v
			}
		}
		if aDone && bDone {
			return Pair[A, B]{First: a, Second: b}, true, nil
		}
		return zero, false, nil
	})
}

// Chosen is the outcome of Select2: Index tells which future finished
// first (0 or 1) and the matching field holds its value.
type Chosen[A, B any] struct {
	Index  int
	First  A
	Second B
}

// Select2 races two futures and completes with whichever finishes
// first. The loser keeps its waker registered but its eventual wake is
// absorbed by the idempotent wake protocol.
func Select2[A, B any](fa Future[A], fb Future[B]) Future[Chosen[A, B]] {
	return FutureFunc[Chosen[A, B]](func(ctx *Ctx) (Chosen[A, B], bool, error) {
		var zero Chosen[A, B]
		if v, done, err := fa.Poll(ctx); done || err != nil {
			return Chosen[A, B]{Index: 0, First: v}, true, err
		}
		if v, done, err := fb.Poll(ctx); done || err != nil {
			return Chosen[A, B]{Index: 1, Second: v}, true, err
		}
		return zero, false, nil
	})
}
