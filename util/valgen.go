// Package valgen provides small closures for generating the sequential or
// constant values test workloads feed into a core's threads, so a
// multi-thread scheduler test can assign each thread a distinct,
// deterministic store value without hand-writing a loop counter.
package valgen

// MakeConstGen returns a generator that always yields constant.
func MakeConstGen(constant uint64) func() uint64 {
	return func() uint64 {
		return constant
	}
}

// MakeSequenceGen returns a generator that yields start, start+1, start+2,
// ... on successive calls.
func MakeSequenceGen(start uint64) func() uint64 {
	current := start
	return func() uint64 {
		v := current
		current++
		return v
	}
}
