// Copyright 2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tcglog_test

import (
	"errors"

	"github.com/canonical/go-tpm2"
	. "gopkg.in/check.v1"

	. "github.com/canonical/tcglog-replay"
)

type algorithmsSuite struct{}

var _ = Suite(&algorithmsSuite{})

func (s *algorithmsSuite) TestLookupById(c *C) {
	algs := DefaultAlgorithmRegistry()

	for _, expected := range []HashAlgorithm{AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA384, AlgorithmSHA512, AlgorithmNull} {
		alg, err := algs.LookupById(expected.Id)
		c.Check(err, IsNil)
		c.Check(alg, DeepEquals, expected)
	}
}

func (s *algorithmsSuite) TestWireIdentifiers(c *C) {
	c.Check(uint16(AlgorithmSHA1.Id), Equals, uint16(0x0004))
	c.Check(uint16(AlgorithmSHA256.Id), Equals, uint16(0x000b))
	c.Check(uint16(AlgorithmSHA384.Id), Equals, uint16(0x000c))
	c.Check(uint16(AlgorithmSHA512.Id), Equals, uint16(0x000d))
	c.Check(uint16(AlgorithmNull.Id), Equals, uint16(0x0010))
}

func (s *algorithmsSuite) TestLookupByIdUnknown(c *C) {
	_, err := DefaultAlgorithmRegistry().LookupById(tpm2.HashAlgorithmSM3_256)
	c.Check(err, ErrorMatches, `unknown algorithm 0x0012`)
	c.Check(errors.Is(err, ErrUnknownAlgorithm), Equals, true)

	var e *UnknownAlgorithmError
	c.Assert(errors.As(err, &e), Equals, true)
	c.Check(e.Algorithm, Equals, tpm2.HashAlgorithmSM3_256)
}

func (s *algorithmsSuite) TestLookupByName(c *C) {
	algs := DefaultAlgorithmRegistry()

	for _, name := range []string{"SHA-256", "sha256", "Sha-256"} {
		alg, err := algs.LookupByName(name)
		c.Check(err, IsNil)
		c.Check(alg, DeepEquals, AlgorithmSHA256)
	}

	_, err := algs.LookupByName("md5")
	c.Check(err, ErrorMatches, `unknown algorithm "md5"`)
	c.Check(errors.Is(err, ErrUnknownAlgorithm), Equals, true)
}

func (s *algorithmsSuite) TestLengthFor(c *C) {
	algs := DefaultAlgorithmRegistry()

	for _, data := range []struct {
		id       tpm2.HashAlgorithmId
		expected uint32
	}{
		{tpm2.HashAlgorithmSHA1, 20},
		{tpm2.HashAlgorithmSHA256, 32},
		{tpm2.HashAlgorithmSHA384, 48},
		{tpm2.HashAlgorithmSHA512, 64},
		{tpm2.HashAlgorithmNull, 0},
	} {
		n, err := algs.LengthFor(data.id)
		c.Check(err, IsNil)
		c.Check(n, Equals, data.expected)
	}

	_, err := algs.LengthFor(tpm2.HashAlgorithmSHA3_256)
	c.Check(errors.Is(err, ErrUnknownAlgorithm), Equals, true)
}

func (s *algorithmsSuite) TestNewAlgorithmRegistryReplace(c *C) {
	custom := HashAlgorithm{Id: tpm2.HashAlgorithmSHA256, Name: "custom", DigestLength: 32}
	algs := NewAlgorithmRegistry(AlgorithmSHA1, AlgorithmSHA256, custom)

	c.Check(algs.Algorithms(), DeepEquals, []HashAlgorithm{AlgorithmSHA1, custom})

	alg, err := algs.LookupById(tpm2.HashAlgorithmSHA256)
	c.Check(err, IsNil)
	c.Check(alg.Name, Equals, "custom")

	_, err = algs.LookupByName("sha256")
	c.Check(errors.Is(err, ErrUnknownAlgorithm), Equals, true)
}

func (s *algorithmsSuite) TestRegistryString(c *C) {
	algs := NewAlgorithmRegistry(AlgorithmSHA1, AlgorithmSHA256)
	c.Check(algs.String(), Equals, "[SHA-1(0x0004), SHA-256(0x000b)]")
}

func (s *algorithmsSuite) TestCanExtend(c *C) {
	c.Check(AlgorithmSHA1.CanExtend(), Equals, true)
	c.Check(AlgorithmSHA512.CanExtend(), Equals, true)
	c.Check(AlgorithmNull.CanExtend(), Equals, false)
}
