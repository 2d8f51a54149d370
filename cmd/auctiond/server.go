package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/cloudx-io/assetauction/auctionapi"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/journal"
	"github.com/cloudx-io/assetauction/memchain"
	"github.com/cloudx-io/assetauction/receipt"
)

const maxRequestBytes = 1 << 20

// Config wires a Server.
type Config struct {
	// EngineAddress is the engine's custody account on the chain.
	EngineAddress core.Address
	Operators     []core.Address
	Genesis       *memchain.Genesis
	Keys          *receipt.KeyManager
	// Journal receives the CBOR event journal. Optional.
	Journal     io.Writer
	Clock       clock.Clock
	MaxWorkers  int
	ReadTimeout time.Duration
}

// Server answers one JSON request per connection. Engine calls from all
// connections are serialized through an Executor.
type Server struct {
	chain   *memchain.Chain
	exec    *engine.Executor
	journal *journal.Journal
	issuer  *receipt.Issuer
	clock   clock.Clock

	maxWorkers  int
	readTimeout time.Duration
	conns       sync.WaitGroup
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Genesis == nil {
		return nil, fmt.Errorf("genesis is required")
	}
	if cfg.Keys == nil {
		return nil, fmt.Errorf("receipt signing key is required")
	}
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", cfg.MaxWorkers)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	chain, err := cfg.Genesis.Build(cfg.EngineAddress)
	if err != nil {
		return nil, fmt.Errorf("building chain: %w", err)
	}
	issuer, err := receipt.NewIssuer(cfg.Keys, clk)
	if err != nil {
		return nil, fmt.Errorf("creating receipt issuer: %w", err)
	}
	jrnl := journal.New(clk, cfg.Journal)

	eng, err := engine.New(engine.Config{
		Address:  cfg.EngineAddress,
		Registry: chain.Registry,
		Assets: engine.AssetResolverFunc(func(_ context.Context, addr core.Address) (engine.AssetContract, error) {
			m, err := chain.Contracts.Get(addr)
			if err != nil {
				return nil, err
			}
			return m, nil
		}),
		Currencies: chain.Bank,
		Events:     engine.MultiSink{jrnl, issuer},
		Clock:      clk,
		Operators:  cfg.Operators,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	for _, gc := range cfg.Genesis.Contracts {
		m, err := chain.Contracts.Get(gc.Address)
		if err != nil {
			return nil, err
		}
		m.RegisterReceiver(cfg.EngineAddress, eng)
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Server{
		chain:       chain,
		exec:        engine.NewExecutor(eng),
		journal:     jrnl,
		issuer:      issuer,
		clock:       clk,
		maxWorkers:  cfg.MaxWorkers,
		readTimeout: readTimeout,
	}, nil
}

// Serve accepts connections until ctx is done or the listener fails. It waits
// for in-flight connections before returning.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer s.conns.Wait()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Errorf("closing listener: %v", err)
		}
	}()

	semaphore := make(chan struct{}, s.maxWorkers)
	log.Infof("worker pool initialized with %d max concurrent workers", s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Errorf("accepting connection: %v", err)
			continue
		}

		// Acquire worker slot, rejecting immediately if the pool is full.
		select {
		case semaphore <- struct{}{}:
			s.conns.Add(1)
			go func(c net.Conn) {
				defer s.conns.Done()
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			log.Warnf("no workers available, rejecting connection from %s", conn.RemoteAddr())
			if err := conn.Close(); err != nil {
				log.Errorf("closing rejected connection: %v", err)
			}
		}
	}
}

// Close stops the executor. Call it after Serve returns.
func (s *Server) Close() {
	s.exec.Close()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Errorf("closing connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(conn, maxRequestBytes)).Decode(&raw); err != nil {
		log.Errorf("reading request: %v", err)
		s.respond(conn, errorResponse(fmt.Errorf("reading request: %w", err)))
		return
	}
	s.respond(conn, s.handle(ctx, raw))
}

func (s *Server) respond(w io.Writer, response any) {
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("writing response: %v", err)
	}
}

// handle decodes one request and returns its response.
func (s *Server) handle(ctx context.Context, raw []byte) any {
	var base auctionapi.Request
	if err := json.Unmarshal(raw, &base); err != nil {
		return errorResponse(fmt.Errorf("decoding request: %w", err))
	}
	log.Debugf("received request type: %s", base.Type)

	var (
		response any
		err      error
	)
	switch base.Type {
	case auctionapi.TypePing:
		response = auctionapi.PongResponse{
			Type:      auctionapi.TypePong,
			Message:   "auction server is healthy",
			Timestamp: s.clock.Now().Unix(),
		}
	case auctionapi.TypeCreateAuction:
		response, err = s.createAuction(ctx, raw)
	case auctionapi.TypePlaceBid:
		response, err = s.placeBid(ctx, raw)
	case auctionapi.TypeClaim:
		response, err = s.claim(ctx, raw)
	case auctionapi.TypeResolve:
		response, err = s.resolve(ctx, raw)
	case auctionapi.TypeCancel:
		response, err = s.cancel(ctx, raw)
	case auctionapi.TypeWithdraw:
		response, err = s.withdraw(ctx, raw)
	case auctionapi.TypeStatus:
		response, err = s.status(ctx, raw)
	case auctionapi.TypeAuction:
		response, err = s.auction(ctx, raw)
	case auctionapi.TypeBalance:
		response, err = s.balance(ctx, raw)
	case auctionapi.TypeReceipt:
		response, err = s.receipt(raw)
	case auctionapi.TypeSetPlatformActive:
		response, err = s.setPlatformActive(ctx, raw)
	default:
		err = fmt.Errorf("unknown request type: %s", base.Type)
	}
	if err != nil {
		log.Infof("%s failed: %v", base.Type, err)
		return errorResponse(err)
	}
	return response
}

func errorResponse(err error) auctionapi.ErrorResponse {
	resp := auctionapi.ErrorResponse{Type: auctionapi.TypeError, Message: err.Error()}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		resp.Kind = engErr.Kind.String()
	}
	return resp
}

func decode[T any](raw []byte) (T, error) {
	var req T
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}

func (s *Server) createAuction(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.CreateAuctionRequest](raw)
	if err != nil {
		return nil, err
	}
	var created core.Auction
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		created, err = eng.CreateAuction(ctx, req.Owner, engine.AuctionParams{
			AssetContract: req.AssetContract,
			AssetID:       req.AssetID,
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			ReservePrice:  req.ReservePrice,
			Currency:      req.Currency,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.auctionResponse(ctx, created.ID)
}

func (s *Server) placeBid(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.PlaceBidRequest](raw)
	if err != nil {
		return nil, err
	}
	var bid core.Bid
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		bid, err = eng.PlaceBid(ctx, req.Bidder, engine.BidParams{
			AuctionID:      req.AuctionID,
			FromOwnBalance: req.FromOwnBalance,
			ExternalAmount: req.ExternalAmount,
			AttachedNative: req.AttachedNative,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return auctionapi.BidResponse{Type: auctionapi.TypePlaceBid, AuctionID: req.AuctionID, Bid: bid}, nil
}

func (s *Server) claim(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ClaimRequest](raw)
	if err != nil {
		return nil, err
	}
	var settlement *core.Settlement
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		settlement, err = eng.Claim(ctx, req.Caller, req.AuctionID, req.Recipient)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.claimResponse(auctionapi.TypeClaim, req.AuctionID, settlement), nil
}

func (s *Server) resolve(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.ResolveRequest](raw)
	if err != nil {
		return nil, err
	}
	var settlement *core.Settlement
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		settlement, err = eng.Resolve(ctx, req.Operator, req.AuctionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.claimResponse(auctionapi.TypeResolve, req.AuctionID, settlement), nil
}

func (s *Server) claimResponse(typ string, id uuid.UUID, settlement *core.Settlement) auctionapi.ClaimResponse {
	resp := auctionapi.ClaimResponse{Type: typ, AuctionID: id, Settlement: settlement}
	if r, ok := s.issuer.Receipt(id); ok && settlement != nil {
		resp.ReceiptCOSEBase64 = r.EncodeBase64()
	}
	return resp
}

func (s *Server) cancel(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.CancelRequest](raw)
	if err != nil {
		return nil, err
	}
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		return eng.Cancel(ctx, req.Caller, req.AuctionID)
	})
	if err != nil {
		return nil, err
	}
	return s.auctionResponse(ctx, req.AuctionID)
}

func (s *Server) withdraw(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.WithdrawRequest](raw)
	if err != nil {
		return nil, err
	}
	var amount core.Amount
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		amount, err = eng.Withdraw(ctx, req.Account, req.Currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return auctionapi.WithdrawResponse{
		Type:     auctionapi.TypeWithdraw,
		Account:  req.Account,
		Currency: req.Currency,
		Amount:   amount,
	}, nil
}

func (s *Server) status(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.AuctionQuery](raw)
	if err != nil {
		return nil, err
	}
	var st core.Status
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		st, err = eng.Status(ctx, req.AuctionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return auctionapi.StatusResponse{Type: auctionapi.TypeStatus, AuctionID: req.AuctionID, Status: st}, nil
}

func (s *Server) auction(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.AuctionQuery](raw)
	if err != nil {
		return nil, err
	}
	return s.auctionResponse(ctx, req.AuctionID)
}

func (s *Server) auctionResponse(ctx context.Context, id uuid.UUID) (auctionapi.AuctionResponse, error) {
	var snap engine.Snapshot
	err := s.exec.Do(ctx, func(eng *engine.Engine) error {
		var err error
		snap, err = eng.Auction(ctx, id)
		return err
	})
	if err != nil {
		return auctionapi.AuctionResponse{}, err
	}
	return auctionapi.AuctionResponse{
		Type:          auctionapi.TypeAuction,
		Auction:       snap.Auction,
		Status:        snap.Status,
		HighestBidder: snap.HighestBidder,
		HighestBid:    snap.HighestBid,
		Cancelled:     snap.Cancelled,
		Claimed:       snap.Claimed,
	}, nil
}

func (s *Server) balance(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.BalanceRequest](raw)
	if err != nil {
		return nil, err
	}
	var claimable core.Amount
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		claimable = eng.Claimable(req.Account, req.Currency)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return auctionapi.BalanceResponse{
		Type:      auctionapi.TypeBalance,
		Account:   req.Account,
		Currency:  req.Currency,
		Claimable: claimable,
	}, nil
}

func (s *Server) receipt(raw []byte) (any, error) {
	req, err := decode[auctionapi.AuctionQuery](raw)
	if err != nil {
		return nil, err
	}
	r, ok := s.issuer.Receipt(req.AuctionID)
	if !ok {
		return nil, fmt.Errorf("no receipt for auction %s", req.AuctionID)
	}
	pub, err := s.issuer.PublicKeyPEM()
	if err != nil {
		return nil, err
	}
	return auctionapi.ReceiptResponse{
		Type:              auctionapi.TypeReceipt,
		AuctionID:         req.AuctionID,
		PublicKey:         pub,
		ReceiptCOSEBase64: r.EncodeBase64(),
	}, nil
}

func (s *Server) setPlatformActive(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[auctionapi.SetPlatformActiveRequest](raw)
	if err != nil {
		return nil, err
	}
	err = s.exec.Do(ctx, func(eng *engine.Engine) error {
		if !eng.IsOperator(req.Operator) {
			return fmt.Errorf("%s is not an operator", req.Operator.Hex())
		}
		s.chain.Registry.SetActive(eng.Address(), req.Active)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("platform active set to %t by %s", req.Active, req.Operator.Hex())
	return auctionapi.OKResponse{Type: auctionapi.TypeOK, Message: fmt.Sprintf("platform active: %t", req.Active)}, nil
}
