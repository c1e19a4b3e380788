// Copyright 2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog

import (
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"github.com/canonical/go-tpm2"
)

// HashAlgorithm describes a TCG registered digest algorithm.
type HashAlgorithm struct {
	Id           tpm2.HashAlgorithmId
	Name         string
	DigestLength uint32
}

func (a HashAlgorithm) String() string {
	return a.Name
}

// NewHash returns a new hash.Hash for this algorithm. It panics if the
// algorithm has no hash function (TPM_ALG_NULL) or if it isn't linked in
// to the current binary.
func (a HashAlgorithm) NewHash() hash.Hash {
	return a.Id.NewHash()
}

// CanExtend indicates whether this algorithm can be used for a PCR bank.
func (a HashAlgorithm) CanExtend() bool {
	return a.Id != tpm2.HashAlgorithmNull && a.DigestLength > 0 && a.Id.Available()
}

var (
	AlgorithmSHA1   = HashAlgorithm{Id: tpm2.HashAlgorithmSHA1, Name: "SHA-1", DigestLength: 20}
	AlgorithmSHA256 = HashAlgorithm{Id: tpm2.HashAlgorithmSHA256, Name: "SHA-256", DigestLength: 32}
	AlgorithmSHA384 = HashAlgorithm{Id: tpm2.HashAlgorithmSHA384, Name: "SHA-384", DigestLength: 48}
	AlgorithmSHA512 = HashAlgorithm{Id: tpm2.HashAlgorithmSHA512, Name: "SHA-512", DigestLength: 64}
	AlgorithmNull   = HashAlgorithm{Id: tpm2.HashAlgorithmNull, Name: "NULL", DigestLength: 0}
)

// AlgorithmRegistry maps TCG algorithm identifiers to names and digest
// lengths. It is immutable once constructed and is safe for concurrent use.
type AlgorithmRegistry struct {
	algs   []HashAlgorithm
	byId   map[tpm2.HashAlgorithmId]HashAlgorithm
	byName map[string]HashAlgorithm
}

func normalizeAlgorithmName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "")
}

// NewAlgorithmRegistry returns a registry containing the supplied
// algorithms. Later entries with a duplicate Id replace earlier ones.
func NewAlgorithmRegistry(algs ...HashAlgorithm) *AlgorithmRegistry {
	r := &AlgorithmRegistry{
		byId:   make(map[tpm2.HashAlgorithmId]HashAlgorithm),
		byName: make(map[string]HashAlgorithm)}
	for _, alg := range algs {
		if prev, exists := r.byId[alg.Id]; !exists {
			r.algs = append(r.algs, alg)
		} else {
			delete(r.byName, normalizeAlgorithmName(prev.Name))
			for i := range r.algs {
				if r.algs[i].Id == alg.Id {
					r.algs[i] = alg
				}
			}
		}
		r.byId[alg.Id] = alg
		r.byName[normalizeAlgorithmName(alg.Name)] = alg
	}
	return r
}

// DefaultAlgorithmRegistry returns a registry with the algorithms defined
// for the PC Client Platform Firmware Profile: SHA-1, SHA-256, SHA-384,
// SHA-512 and NULL.
func DefaultAlgorithmRegistry() *AlgorithmRegistry {
	return NewAlgorithmRegistry(AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA384, AlgorithmSHA512, AlgorithmNull)
}

// LookupById returns the algorithm registered for id.
func (r *AlgorithmRegistry) LookupById(id tpm2.HashAlgorithmId) (HashAlgorithm, error) {
	alg, ok := r.byId[id]
	if !ok {
		return HashAlgorithm{}, &UnknownAlgorithmError{Algorithm: id}
	}
	return alg, nil
}

// LookupByName returns the algorithm registered with the specified name.
// The comparison ignores case and hyphens, so "SHA-256" and "sha256" are
// equivalent.
func (r *AlgorithmRegistry) LookupByName(name string) (HashAlgorithm, error) {
	alg, ok := r.byName[normalizeAlgorithmName(name)]
	if !ok {
		return HashAlgorithm{}, &UnknownAlgorithmError{Name: name}
	}
	return alg, nil
}

// LengthFor returns the digest length of the algorithm registered for id.
func (r *AlgorithmRegistry) LengthFor(id tpm2.HashAlgorithmId) (uint32, error) {
	alg, err := r.LookupById(id)
	if err != nil {
		return 0, err
	}
	return alg.DigestLength, nil
}

// Algorithms returns the registered algorithms in registration order.
func (r *AlgorithmRegistry) Algorithms() []HashAlgorithm {
	return append([]HashAlgorithm(nil), r.algs...)
}

func (r *AlgorithmRegistry) String() string {
	var names []string
	for _, alg := range r.algs {
		names = append(names, fmt.Sprintf("%s(0x%04x)", alg.Name, uint16(alg.Id)))
	}
	return "[" + strings.Join(names, ", ") + "]"
}
