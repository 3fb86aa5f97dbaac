package utils

import (
	"commerce_settlement/model"
	"fmt"
	"strconv"
	"strings"
)

const (
	singlePrefix      = "ORD-"
	bulkPrefix        = "BULK-"
	descriptionPrefix = "PAYORDERS"
)

// EncodeOrderReference packs an ordered order id list into the opaque reference
// stored on the payment: ORD-<id> for one order, BULK-<id>-<id>... for a batch.
func EncodeOrderReference(orderIds []uint) (string, error) {
	if err := checkOrderIds(orderIds); err != nil {
		return "", err
	}
	if len(orderIds) == 1 {
		return singlePrefix + strconv.FormatUint(uint64(orderIds[0]), 10), nil
	}
	return bulkPrefix + joinIds(orderIds, "-"), nil
}

// BuildDescription is the payer-visible memo. Gateways echo it back, so it is
// also accepted by DecodeOrderReference.
func BuildDescription(orderIds []uint) string {
	return descriptionPrefix + " " + joinIds(orderIds, " ")
}

// DecodeOrderReference recovers the ordered id list from a reference or a
// description, tolerating text a gateway or bank may wrap around it.
func DecodeOrderReference(reference string) ([]uint, error) {
	s := strings.ToUpper(strings.TrimSpace(reference))
	if s == "" {
		return nil, fmt.Errorf("%w: empty reference", model.ErrInvalidReference)
	}

	if i := strings.Index(s, bulkPrefix); i >= 0 {
		ids, err := scanIds(s[i+len(bulkPrefix):], '-')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidReference, reference, err)
		}
		if len(ids) < 2 {
			return nil, fmt.Errorf("%w: %q: bulk reference needs at least two orders", model.ErrInvalidReference, reference)
		}
		return ids, nil
	}
	if i := strings.Index(s, singlePrefix); i >= 0 {
		ids, err := scanIds(s[i+len(singlePrefix):], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidReference, reference, err)
		}
		return ids, nil
	}
	if i := strings.Index(s, descriptionPrefix+" "); i >= 0 {
		ids, err := scanIds(s[i+len(descriptionPrefix)+1:], ' ')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidReference, reference, err)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrInvalidReference, reference)
}

// scanIds reads digit runs separated by sep (0 means a single id) and stops at
// the first character that cannot continue the list.
func scanIds(s string, sep byte) ([]uint, error) {
	var ids []uint
	for {
		n := 0
		for n < len(s) && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		if n == 0 {
			if len(ids) == 0 {
				return nil, fmt.Errorf("missing order id")
			}
			return ids, nil
		}
		v, err := strconv.ParseUint(s[:n], 10, strconv.IntSize)
		if err != nil || v == 0 {
			return nil, fmt.Errorf("bad order id %q", s[:n])
		}
		ids = append(ids, uint(v))
		s = s[n:]
		if sep == 0 || len(s) < 2 || s[0] != sep || s[1] < '0' || s[1] > '9' {
			return ids, nil
		}
		s = s[1:]
	}
}

func checkOrderIds(orderIds []uint) error {
	if len(orderIds) == 0 {
		return fmt.Errorf("%w: empty order list", model.ErrInvalidOrder)
	}
	seen := make(map[uint]struct{}, len(orderIds))
	for _, id := range orderIds {
		if id == 0 {
			return fmt.Errorf("%w: order id must be positive", model.ErrInvalidOrder)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate order %d", model.ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func joinIds(orderIds []uint, sep string) string {
	parts := make([]string, len(orderIds))
	for i, id := range orderIds {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, sep)
}

// JoinOrderIds renders ids as a single path segment, e.g. 12,15.
func JoinOrderIds(orderIds []uint) string {
	return joinIds(orderIds, ",")
}

type TransferInstruction struct {
	BankCode    string
	AccountNo   string
	AccountName string
	Amount      int64
	Description string
	PaymentCode string
}

// BuildTransferInstruction is the QR content for bank transfers and wallets.
func BuildTransferInstruction(in TransferInstruction) string {
	return fmt.Sprintf("BANK:%s|ACC:%s|NAME:%s|AMOUNT:%d|MEMO:%s|REF:%s",
		in.BankCode, in.AccountNo, in.AccountName, in.Amount, in.Description, in.PaymentCode)
}
