package proto

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers follow ledger.proto.
// Amounts travel as decimal strings ("150.00") and timestamps as RFC 3339.

const (
	EntryKindCredit = "credit"
	EntryKindDebit  = "debit"
)

type Entry struct {
	Id           uint64 `json:"id"`
	AccountId    int64  `json:"account_id"`
	RefId        string `json:"ref_id,omitempty"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Category     string `json:"category,omitempty"`
	BalanceAfter string `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

type ApplyRequest struct {
	AccountId   int64  `json:"account_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	// RefId is an optional UUID idempotency key.
	RefId string `json:"ref_id,omitempty"`
}

type ApplyResponse struct {
	Entry *Entry `json:"entry"`
}

type GetBalanceRequest struct {
	AccountId int64 `json:"account_id"`
}

type GetBalanceResponse struct {
	AccountId int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

type ListEntriesRequest struct {
	AccountId int64  `json:"account_id"`
	Limit     int32  `json:"limit,omitempty"`
	BeforeId  uint64 `json:"before_id,omitempty"`
}

type ListEntriesResponse struct {
	Entries []*Entry `json:"entries"`
	// NextBeforeId continues the listing; zero when the page was not full.
	NextBeforeId uint64 `json:"next_before_id,omitempty"`
}

type GetEntryRequest struct {
	AccountId int64  `json:"account_id"`
	EntryId   uint64 `json:"entry_id"`
}

type GetEntryResponse struct {
	Entry *Entry `json:"entry"`
}

type OpenAccountRequest struct {
	AccountId      int64  `json:"account_id"`
	OpeningBalance string `json:"opening_balance,omitempty"`
}

type OpenAccountResponse struct {
	AccountId int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

func (m *Entry) appendTo(b []byte) []byte {
	b = appendUint64(b, 1, m.Id)
	b = appendInt64(b, 2, m.AccountId)
	b = appendString(b, 3, m.RefId)
	b = appendString(b, 4, m.Kind)
	b = appendString(b, 5, m.Amount)
	b = appendString(b, 6, m.Description)
	b = appendString(b, 7, m.Category)
	b = appendString(b, 8, m.BalanceAfter)
	b = appendString(b, 9, m.CreatedAt)
	return b
}

func (m *Entry) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *Entry) Unmarshal(b []byte) error {
	*m = Entry{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readUint64(typ, b, &m.Id)
		case 2:
			return readInt64(typ, b, &m.AccountId)
		case 3:
			return readString(typ, b, &m.RefId)
		case 4:
			return readString(typ, b, &m.Kind)
		case 5:
			return readString(typ, b, &m.Amount)
		case 6:
			return readString(typ, b, &m.Description)
		case 7:
			return readString(typ, b, &m.Category)
		case 8:
			return readString(typ, b, &m.BalanceAfter)
		case 9:
			return readString(typ, b, &m.CreatedAt)
		}
		return skipField, nil
	})
}

func (m *ApplyRequest) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendString(b, 2, m.Kind)
	b = appendString(b, 3, m.Amount)
	b = appendString(b, 4, m.Description)
	b = appendString(b, 5, m.Category)
	b = appendString(b, 6, m.RefId)
	return b
}

func (m *ApplyRequest) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *ApplyRequest) Unmarshal(b []byte) error {
	*m = ApplyRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readString(typ, b, &m.Kind)
		case 3:
			return readString(typ, b, &m.Amount)
		case 4:
			return readString(typ, b, &m.Description)
		case 5:
			return readString(typ, b, &m.Category)
		case 6:
			return readString(typ, b, &m.RefId)
		}
		return skipField, nil
	})
}

func (m *ApplyResponse) appendTo(b []byte) []byte {
	b = appendEntry(b, 1, m.Entry)
	return b
}

func (m *ApplyResponse) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *ApplyResponse) Unmarshal(b []byte) error {
	*m = ApplyResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readEntry(typ, b, &m.Entry)
		}
		return skipField, nil
	})
}

func (m *GetBalanceRequest) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	return b
}

func (m *GetBalanceRequest) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *GetBalanceRequest) Unmarshal(b []byte) error {
	*m = GetBalanceRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		}
		return skipField, nil
	})
}

func (m *GetBalanceResponse) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendString(b, 2, m.Balance)
	return b
}

func (m *GetBalanceResponse) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *GetBalanceResponse) Unmarshal(b []byte) error {
	*m = GetBalanceResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readString(typ, b, &m.Balance)
		}
		return skipField, nil
	})
}

func (m *ListEntriesRequest) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendInt32(b, 2, m.Limit)
	b = appendUint64(b, 3, m.BeforeId)
	return b
}

func (m *ListEntriesRequest) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *ListEntriesRequest) Unmarshal(b []byte) error {
	*m = ListEntriesRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readInt32(typ, b, &m.Limit)
		case 3:
			return readUint64(typ, b, &m.BeforeId)
		}
		return skipField, nil
	})
}

func (m *ListEntriesResponse) appendTo(b []byte) []byte {
	for _, e := range m.Entries {
		b = appendEntry(b, 1, e)
	}
	b = appendUint64(b, 2, m.NextBeforeId)
	return b
}

func (m *ListEntriesResponse) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *ListEntriesResponse) Unmarshal(b []byte) error {
	*m = ListEntriesResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var e *Entry
			n, err := readEntry(typ, b, &e)
			if err == nil {
				m.Entries = append(m.Entries, e)
			}
			return n, err
		case 2:
			return readUint64(typ, b, &m.NextBeforeId)
		}
		return skipField, nil
	})
}

func (m *GetEntryRequest) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendUint64(b, 2, m.EntryId)
	return b
}

func (m *GetEntryRequest) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *GetEntryRequest) Unmarshal(b []byte) error {
	*m = GetEntryRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readUint64(typ, b, &m.EntryId)
		}
		return skipField, nil
	})
}

func (m *GetEntryResponse) appendTo(b []byte) []byte {
	b = appendEntry(b, 1, m.Entry)
	return b
}

func (m *GetEntryResponse) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *GetEntryResponse) Unmarshal(b []byte) error {
	*m = GetEntryResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readEntry(typ, b, &m.Entry)
		}
		return skipField, nil
	})
}

func (m *OpenAccountRequest) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendString(b, 2, m.OpeningBalance)
	return b
}

func (m *OpenAccountRequest) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *OpenAccountRequest) Unmarshal(b []byte) error {
	*m = OpenAccountRequest{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readString(typ, b, &m.OpeningBalance)
		}
		return skipField, nil
	})
}

func (m *OpenAccountResponse) appendTo(b []byte) []byte {
	b = appendInt64(b, 1, m.AccountId)
	b = appendString(b, 2, m.Balance)
	return b
}

func (m *OpenAccountResponse) Marshal() ([]byte, error) {
	return m.appendTo(nil), nil
}

func (m *OpenAccountResponse) Unmarshal(b []byte) error {
	*m = OpenAccountResponse{}
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return readInt64(typ, b, &m.AccountId)
		case 2:
			return readString(typ, b, &m.Balance)
		}
		return skipField, nil
	})
}
