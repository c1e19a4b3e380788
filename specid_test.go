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

type specIdSuite struct{}

var _ = Suite(&specIdSuite{})

func (s *specIdSuite) TestDecodeSpecIdEvent03(c *C) {
	data := specIdEvent03Data(
		EFISpecIdEventAlgorithmSize{AlgorithmId: tpm2.HashAlgorithmSHA1, DigestSize: 20},
		EFISpecIdEventAlgorithmSize{AlgorithmId: tpm2.HashAlgorithmSHA256, DigestSize: 32})

	e, err := DecodeSpecIdEvent03(data)
	c.Assert(err, IsNil)
	c.Check(e, DeepEquals, &SpecIdEvent03{
		SpecVersionMajor: 2,
		UintnSize:        2,
		DigestSizes: []EFISpecIdEventAlgorithmSize{
			{AlgorithmId: tpm2.HashAlgorithmSHA1, DigestSize: 20},
			{AlgorithmId: tpm2.HashAlgorithmSHA256, DigestSize: 32}},
		VendorInfo: []byte{}})
	c.Check(e.Contains(tpm2.HashAlgorithmSHA256), Equals, true)
	c.Check(e.Contains(tpm2.HashAlgorithmSHA384), Equals, false)
	c.Check(e.String(), Equals, "EfiSpecIdEvent{ platformClass=0, specVersionMinor=0, specVersionMajor=2, specErrata=0, uintnSize=2, "+
		"digestSizes=[{ algorithmId=0x0004, digestSize=20 }, { algorithmId=0x000b, digestSize=32 }] }")
}

func (s *specIdSuite) TestDecodeSpecIdEvent03WrongSignature(c *C) {
	_, err := DecodeSpecIdEvent03(noActionData("Spec ID Event02", make([]byte, 16)...))
	c.Check(err, ErrorMatches, `unexpected signature: invalid Spec ID event`)
	c.Check(errors.Is(err, ErrInvalidSpecIdEvent), Equals, true)
}

func (s *specIdSuite) TestDecodeSpecIdEvent03Truncated(c *C) {
	data := specIdEvent03Data(EFISpecIdEventAlgorithmSize{AlgorithmId: tpm2.HashAlgorithmSHA256, DigestSize: 32})

	_, err := DecodeSpecIdEvent03(data[:len(data)-1])
	c.Check(err, ErrorMatches, `cannot read vendor info size: unexpected EOF: invalid Spec ID event`)
	c.Check(errors.Is(err, ErrInvalidSpecIdEvent), Equals, true)
}

func (s *specIdSuite) TestDecodeSpecIdEvent03TooManyAlgorithms(c *C) {
	data := specIdEvent03Data(EFISpecIdEventAlgorithmSize{AlgorithmId: tpm2.HashAlgorithmSHA256, DigestSize: 32})
	// Overwrite numberOfAlgorithms.
	data[24] = 0xff

	_, err := DecodeSpecIdEvent03(data)
	c.Check(err, ErrorMatches, `algorithm count 255 exceeds event size: invalid Spec ID event`)
}

func (s *specIdSuite) TestDecodeStartupLocality(c *C) {
	locality, err := DecodeStartupLocality(startupLocalityData(3))
	c.Check(err, IsNil)
	c.Check(locality, Equals, uint8(3))

	_, err = DecodeStartupLocality(noActionData("StartupLocality"))
	c.Check(err, ErrorMatches, `unexpected EOF`)

	_, err = DecodeStartupLocality(noActionData("Spec ID Event03", 3))
	c.Check(err, ErrorMatches, `not a StartupLocality event`)
}
