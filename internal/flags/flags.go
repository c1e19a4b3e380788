// Copyright 2021-2024 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package flags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bsiegert/ranges"
	"github.com/canonical/go-tpm2"

	"github.com/canonical/tcglog-replay"
)

// HashAlgorithmId is a flag value for selecting the replay algorithm. The
// zero value corresponds to "auto".
type HashAlgorithmId tpm2.HashAlgorithmId

func (h HashAlgorithmId) MarshalFlag() (string, error) {
	if tpm2.HashAlgorithmId(h) == tcglog.ReplayAlgorithmAuto {
		return "auto", nil
	}
	alg, err := tcglog.DefaultAlgorithmRegistry().LookupById(tpm2.HashAlgorithmId(h))
	if err != nil {
		return "", fmt.Errorf("unrecognized algorithm %v", tpm2.HashAlgorithmId(h))
	}
	return strings.ToLower(strings.ReplaceAll(alg.Name, "-", "")), nil
}

func (h *HashAlgorithmId) UnmarshalFlag(value string) error {
	if value == "auto" {
		*h = HashAlgorithmId(tcglog.ReplayAlgorithmAuto)
		return nil
	}
	alg, err := tcglog.DefaultAlgorithmRegistry().LookupByName(value)
	if err != nil || alg.Id == tpm2.HashAlgorithmNull {
		return fmt.Errorf("unrecognized algorithm \"%s\"", value)
	}
	*h = HashAlgorithmId(alg.Id)
	return nil
}

// PCRRange is a flag value for selecting PCRs, eg "0-7,9".
type PCRRange []tcglog.PCRIndex

func (r PCRRange) MarshalFlag() (string, error) {
	var s []string
	for _, p := range r {
		s = append(s, strconv.FormatInt(int64(p), 10))
	}
	return strings.Join(s, ","), nil
}

func (r *PCRRange) UnmarshalFlag(value string) error {
	i, err := ranges.Parse(value)
	if err != nil {
		return err
	}
	for _, p := range i {
		if p < 0 || p >= tcglog.NumPCRs {
			return fmt.Errorf("invalid PCR index %d", p)
		}
		*r = append(*r, tcglog.PCRIndex(p))
	}
	return nil
}

func (r PCRRange) Contains(index tcglog.PCRIndex) bool {
	for _, p := range r {
		if p == index {
			return true
		}
	}
	return false
}
