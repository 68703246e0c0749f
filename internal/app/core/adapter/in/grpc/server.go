package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	pb "github.com/JoeShih716/go-bank-ledger/proto"
)

// MaxPageSize caps ListEntries when the caller asks for no limit or more than this.
const MaxPageSize = 500

// Ledger is the part of usecase.LedgerEngine the transport needs.
type Ledger interface {
	Apply(ctx context.Context, req domain.ApplyRequest) (*domain.LedgerEntry, error)
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	ListEntries(ctx context.Context, accountID int64, opts usecase.ListOptions) ([]domain.LedgerEntry, error)
	GetEntry(ctx context.Context, accountID int64, entryID uint64) (*domain.LedgerEntry, error)
	OpenAccount(ctx context.Context, accountID int64, opening decimal.Decimal) (*domain.Account, error)
}

type GrpcServer struct {
	pb.UnimplementedLedgerServiceServer
	ledger Ledger
}

func NewGrpcServer(ledger Ledger) *GrpcServer {
	return &GrpcServer{
		ledger: ledger,
	}
}

func (s *GrpcServer) Apply(ctx context.Context, req *pb.ApplyRequest) (*pb.ApplyResponse, error) {
	applyReq, err := toApplyRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}
	entry, err := s.ledger.Apply(ctx, applyReq)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.ApplyResponse{Entry: toEntry(entry)}, nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *pb.GetBalanceRequest) (*pb.GetBalanceResponse, error) {
	balance, err := s.ledger.GetBalance(ctx, req.AccountId)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetBalanceResponse{
		AccountId: req.AccountId,
		Balance:   domain.FormatAmount(balance),
	}, nil
}

func (s *GrpcServer) ListEntries(ctx context.Context, req *pb.ListEntriesRequest) (*pb.ListEntriesResponse, error) {
	limit := int(req.Limit)
	if limit == 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	entries, err := s.ledger.ListEntries(ctx, req.AccountId, usecase.ListOptions{Limit: limit, BeforeID: req.BeforeId})
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.ListEntriesResponse{Entries: make([]*pb.Entry, 0, len(entries))}
	for i := range entries {
		resp.Entries = append(resp.Entries, toEntry(&entries[i]))
	}
	// 整頁取滿時才回傳下一頁的游標
	if len(entries) == limit {
		resp.NextBeforeId = entries[len(entries)-1].ID
	}
	return resp, nil
}

func (s *GrpcServer) GetEntry(ctx context.Context, req *pb.GetEntryRequest) (*pb.GetEntryResponse, error) {
	entry, err := s.ledger.GetEntry(ctx, req.AccountId, req.EntryId)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.GetEntryResponse{Entry: toEntry(entry)}, nil
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *pb.OpenAccountRequest) (*pb.OpenAccountResponse, error) {
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		if opening, err = domain.ParseAmount(req.OpeningBalance); err != nil {
			return nil, toStatus(err)
		}
	}
	account, err := s.ledger.OpenAccount(ctx, req.AccountId, opening)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.OpenAccountResponse{
		AccountId: account.ID,
		Balance:   domain.FormatAmount(account.Balance),
	}, nil
}

func toApplyRequest(req *pb.ApplyRequest) (domain.ApplyRequest, error) {
	// 1. 轉換分錄類型
	kind, err := domain.ParseEntryKind(req.Kind)
	if err != nil {
		return domain.ApplyRequest{}, err
	}
	// 2. 解析金額 (範圍與精度由 engine 驗證)
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return domain.ApplyRequest{}, err
	}
	// 3. 組裝 Domain Request
	out := domain.ApplyRequest{
		AccountID:   req.AccountId,
		Kind:        kind,
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
	}
	// 4. RefID 為可選的冪等鍵 (UUID)
	if req.RefId != "" {
		ref, err := uuid.Parse(req.RefId)
		if err != nil {
			return domain.ApplyRequest{}, fmt.Errorf("%w: ref_id: %v", domain.ErrInvalidRequest, err)
		}
		out.RefID = ref
	}
	return out, nil
}

func toEntry(e *domain.LedgerEntry) *pb.Entry {
	out := &pb.Entry{
		Id:           e.ID,
		AccountId:    e.AccountID,
		Kind:         string(e.Kind),
		Amount:       domain.FormatAmount(e.Amount),
		Description:  e.Description,
		Category:     e.Category,
		BalanceAfter: domain.FormatAmount(e.BalanceAfter),
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.RefID != uuid.Nil {
		out.RefId = e.RefID.String()
	}
	return out
}

var _ pb.LedgerServiceServer = (*GrpcServer)(nil)
