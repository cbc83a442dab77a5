package task

import "math/bits"

// Affinity is the set of vCPU ids a task is allowed to run on. It is a
// fixed-width bitset: this core supports up to 64 vCPUs, which comfortably
// covers any physical or virtual CPU count seen inside an enclave.
type Affinity uint64

// AffinityAll returns the affinity set containing every vCPU in
// [0, numVCPUs), the default a task is spawned with.
func AffinityAll(numVCPUs int) Affinity {
	if numVCPUs <= 0 {
		return 0
	}
	if numVCPUs >= 64 {
		return ^Affinity(0)
	}
	return Affinity(1)<<uint(numVCPUs) - 1
}

// AffinityOf builds an affinity set from explicit vCPU ids.
func AffinityOf(vcpus ...int) Affinity {
	var a Affinity
	for _, v := range vcpus {
		a |= 1 << uint(v)
	}
	return a
}

// Contains reports whether vcpu is a member of the set.
func (a Affinity) Contains(vcpu int) bool {
	return a&(1<<uint(vcpu)) != 0
}

// IsEmpty reports whether the set has no members. A Task's affinity must
// never be empty; this is used to validate that invariant at construction.
func (a Affinity) IsEmpty() bool { return a == 0 }

// Len returns the number of vCPUs in the set.
func (a Affinity) Len() int { return bits.OnesCount64(uint64(a)) }

// Each calls fn for every vCPU id in the set, in ascending order.
func (a Affinity) Each(fn func(vcpu int)) {
	for a != 0 {
		v := bits.TrailingZeros64(uint64(a))
		fn(v)
		a &^= 1 << uint(v)
	}
}
