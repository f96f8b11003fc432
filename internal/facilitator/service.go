// Package facilitator orchestrates the verify and settle flows: resolve
// the network, resolve token metadata, run validation, drive settlement,
// and emit audit rows and metrics for every attempt.
package facilitator

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/a402-foundation/a402-facilitator/internal/audit"
	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/metrics"
	"github.com/a402-foundation/a402-facilitator/internal/settle"
	"github.com/a402-foundation/a402-facilitator/internal/token"
	"github.com/a402-foundation/a402-facilitator/internal/validate"
)

// Version reported on / and /list.
const Version = "1.0.0"

// ServiceName reported on /health.
const ServiceName = "a402-facilitator"

// Backend is everything the service needs from one network's chain
// connection. *evm.Client satisfies it.
type Backend interface {
	validate.ReplayOracle
	token.MetadataReader
	settle.Submitter
	Address() common.Address
}

// Service implements the facilitator operations behind the HTTP layer.
type Service struct {
	cfg       *config.Config
	backends  map[config.NetworkID]Backend
	validator *validate.Validator
	executor  *settle.Executor
	resolver  *token.Resolver
	sink      audit.Sink
	metrics   *metrics.Registry
	log       *logrus.Logger
}

// New wires a service from its parts.
func New(
	cfg *config.Config,
	backends map[config.NetworkID]Backend,
	validator *validate.Validator,
	executor *settle.Executor,
	resolver *token.Resolver,
	sink audit.Sink,
	reg *metrics.Registry,
	log *logrus.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		backends:  backends,
		validator: validator,
		executor:  executor,
		resolver:  resolver,
		sink:      sink,
		metrics:   reg,
		log:       log,
	}
}

// Verify checks a signed authorization without touching chain state beyond
// reads. The returned reason distinguishes malformed requests (client
// error) from business rejections (HTTP 200, isValid=false). A non-nil
// error is either config.ErrUnknownNetwork or a chain read failure.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, validate.Reason, error) {
	start := time.Now()

	cc, err := s.cfg.ResolveName(req.PaymentRequirements.Network)
	if err != nil {
		s.metrics.ObserveVerify(false)
		return VerifyResponse{}, validate.ReasonNone, err
	}
	backend := s.backends[cc.Network]

	if !common.IsHexAddress(req.PaymentRequirements.RelayerContract) {
		s.metrics.ObserveVerify(false)
		return VerifyResponse{
			IsValid:       false,
			InvalidReason: "paymentRequirements.relayerContract is not a valid address",
		}, validate.ReasonMalformedPayload, nil
	}
	verifyingContract := common.HexToAddress(req.PaymentRequirements.RelayerContract)

	info, _ := s.resolver.Resolve(ctx, backend, cc, req.PaymentPayload.Token)

	outcome, err := s.validator.Validate(ctx, backend, cc, req.PaymentPayload.Payload, verifyingContract)
	if err != nil {
		s.metrics.ObserveVerify(false)
		s.log.WithError(err).Warn("verify: chain read failed")
		return VerifyResponse{}, validate.ReasonNone, err
	}

	s.metrics.ObserveVerify(outcome.Valid)
	s.auditVerify(ctx, req, cc, info, outcome, time.Since(start))

	if !outcome.Valid {
		resp := VerifyResponse{IsValid: false, InvalidReason: outcome.Reason.Message()}
		if outcome.Reason == validate.ReasonMalformedPayload && outcome.Detail != "" {
			resp.InvalidReason = outcome.Detail
		}
		return resp, outcome.Reason, nil
	}

	s.log.WithFields(logrus.Fields{
		"payer":  outcome.Payer.Hex(),
		"to":     req.PaymentPayload.Payload.Authorization.To,
		"amount": token.FormatUnits(req.PaymentPayload.Payload.Authorization.Value, info.Decimals),
		"symbol": info.Symbol,
	}).Info("verify: authorization valid")

	return VerifyResponse{IsValid: true, Payer: outcome.Payer.Hex()}, validate.ReasonNone, nil
}

// Settle re-validates the intent and, if still valid, submits it on-chain
// and waits for one confirmation. Validation rejections and settlement
// failures both come back as success=false; the reason tells them apart.
func (s *Service) Settle(ctx context.Context, req VerifyRequest) (SettleResponse, validate.Reason, error) {
	start := time.Now()

	cc, err := s.cfg.ResolveName(req.PaymentRequirements.Network)
	if err != nil {
		s.metrics.ObserveSettle(false, 0, 0)
		return SettleResponse{}, validate.ReasonNone, err
	}
	backend := s.backends[cc.Network]

	if !common.IsHexAddress(req.PaymentRequirements.RelayerContract) {
		s.metrics.ObserveSettle(false, 0, 0)
		return SettleResponse{
			Success:     false,
			Network:     cc.DisplayName,
			ErrorReason: "paymentRequirements.relayerContract is not a valid address",
		}, validate.ReasonMalformedPayload, nil
	}
	verifyingContract := common.HexToAddress(req.PaymentRequirements.RelayerContract)

	info, _ := s.resolver.Resolve(ctx, backend, cc, req.PaymentPayload.Token)

	// A verify result may be arbitrarily stale by the time the settle call
	// arrives, so the full gate sequence runs again here.
	outcome, err := s.validator.Validate(ctx, backend, cc, req.PaymentPayload.Payload, verifyingContract)
	if err != nil {
		s.metrics.ObserveSettle(false, 0, 0)
		s.log.WithError(err).Warn("settle: chain read failed")
		return SettleResponse{}, validate.ReasonNone, err
	}
	if !outcome.Valid {
		reason := outcome.Reason.Message()
		if outcome.Reason == validate.ReasonMalformedPayload && outcome.Detail != "" {
			reason = outcome.Detail
		}
		s.metrics.ObserveSettle(false, 0, 0)
		s.auditSettle(ctx, req, cc, info, settle.Receipt{Status: settle.StatusFailed, FailureReason: reason}, outcome.Payer, time.Since(start))
		return SettleResponse{
			Success:     false,
			Network:     cc.DisplayName,
			ErrorReason: reason,
		}, outcome.Reason, nil
	}

	if !common.IsHexAddress(req.PaymentPayload.Token) {
		s.metrics.ObserveSettle(false, 0, 0)
		return SettleResponse{
			Success:     false,
			Network:     cc.DisplayName,
			ErrorReason: "paymentPayload.token is not a valid address",
		}, validate.ReasonMalformedPayload, nil
	}
	tokenAddr := common.HexToAddress(req.PaymentPayload.Token)

	receipt, err := s.executor.Settle(ctx, backend, cc, tokenAddr, req.PaymentPayload.Payload)
	if err != nil {
		// Only the in-flight guard produces an error here; pass it through
		// so the HTTP layer can name it without settling twice.
		s.metrics.ObserveSettle(false, 0, 0)
		return SettleResponse{}, validate.ReasonNone, err
	}

	s.metrics.ObserveSettle(receipt.Success(), receipt.GasUsed, receipt.Duration)
	s.auditSettle(ctx, req, cc, info, receipt, outcome.Payer, time.Since(start))

	if !receipt.Success() {
		s.log.WithFields(logrus.Fields{
			"reason": receipt.FailureReason,
			"tx":     receipt.TransactionHash,
		}).Warn("settle: settlement failed")
		return SettleResponse{
			Success:     false,
			Transaction: receipt.TransactionHash,
			Network:     cc.DisplayName,
			Payer:       outcome.Payer.Hex(),
			ErrorReason: receipt.FailureReason,
		}, validate.ReasonNone, nil
	}

	s.log.WithFields(logrus.Fields{
		"tx":       receipt.TransactionHash,
		"block":    receipt.BlockNumber,
		"gasUsed":  receipt.GasUsed,
		"duration": receipt.Duration.Seconds(),
	}).Info("settle: settlement confirmed")

	return SettleResponse{
		Success:     true,
		Transaction: receipt.TransactionHash,
		BlockNumber: receipt.BlockNumber,
		Payer:       outcome.Payer.Hex(),
		Network:     cc.DisplayName,
	}, validate.ReasonNone, nil
}

// List advertises supported networks and their whitelisted assets.
func (s *Service) List(ctx context.Context) ListResponse {
	networks := make([]NetworkListing, 0, len(s.cfg.Networks()))
	for _, cc := range s.cfg.Networks() {
		assets := token.Whitelist(cc.Network)
		resolved := make([]token.Info, 0, len(assets))
		for _, asset := range assets {
			info, _ := s.resolver.Resolve(ctx, s.backends[cc.Network], cc, asset.Address)
			resolved = append(resolved, info)
		}
		networks = append(networks, NetworkListing{
			Network:         cc.DisplayName,
			ChainID:         cc.ChainID.Int64(),
			RelayerContract: cc.RelayerContract.Hex(),
			SupportedAssets: resolved,
		})
	}
	return ListResponse{
		Facilitator: "a402",
		Version:     Version,
		Networks:    networks,
		Features: []string{
			"gasless-payments",
			"eip712-signatures",
			"dynamic-token-support",
			"avalanche-c-chain",
		},
		Endpoints: map[string]string{
			"verify": "/verify",
			"settle": "/settle",
			"list":   "/list",
			"health": "/health",
		},
	}
}

// Health reports liveness and the relayer account in use.
func (s *Service) Health() HealthResponse {
	cc, _ := s.cfg.Resolve(s.cfg.ActiveNetwork)
	return HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Network: cc.DisplayName,
		Relayer: s.backends[cc.Network].Address().Hex(),
	}
}

// Info describes the API surface, served on the root path.
func (s *Service) Info() InfoResponse {
	cc, _ := s.cfg.Resolve(s.cfg.ActiveNetwork)
	return InfoResponse{
		Service:         "A402 Facilitator",
		Version:         Version,
		Network:         cc.DisplayName,
		ChainID:         cc.ChainID.Int64(),
		RelayerContract: cc.RelayerContract.Hex(),
		Endpoints: map[string]string{
			"/":        "GET - API information",
			"/health":  "GET - Health check",
			"/list":    "GET - List supported tokens",
			"/verify":  "POST - Verify payment authorization",
			"/settle":  "POST - Execute payment on-chain",
			"/metrics": "GET - Prometheus metrics",
		},
	}
}

func (s *Service) auditVerify(ctx context.Context, req VerifyRequest, cc config.ChainContext, info token.Info, outcome validate.Outcome, elapsed time.Duration) {
	auth := req.PaymentPayload.Payload.Authorization
	s.sink.Insert(ctx, audit.TableVerify, audit.VerifyRecord{
		ID:              audit.NewRecordID(),
		Payer:           auth.From,
		Recipient:       auth.To,
		Token:           req.PaymentPayload.Token,
		TokenSymbol:     info.Symbol,
		Amount:          auth.Value,
		AmountFormatted: token.FormatUnits(auth.Value, info.Decimals),
		Nonce:           auth.Nonce,
		Network:         cc.DisplayName,
		ChainID:         cc.ChainID.Int64(),
		IsValid:         outcome.Valid,
		InvalidReason:   outcome.Reason.Message(),
		DurationMillis:  elapsed.Milliseconds(),
		Timestamp:       audit.Now(),
	})
}

func (s *Service) auditSettle(ctx context.Context, req VerifyRequest, cc config.ChainContext, info token.Info, receipt settle.Receipt, payer common.Address, elapsed time.Duration) {
	auth := req.PaymentPayload.Payload.Authorization
	rec := audit.SettleRecord{
		ID:              audit.NewRecordID(),
		TransactionHash: receipt.TransactionHash,
		Payer:           auth.From,
		Recipient:       auth.To,
		Token:           req.PaymentPayload.Token,
		TokenSymbol:     info.Symbol,
		Amount:          auth.Value,
		AmountFormatted: token.FormatUnits(auth.Value, info.Decimals),
		Nonce:           auth.Nonce,
		Network:         cc.DisplayName,
		ChainID:         cc.ChainID.Int64(),
		BlockNumber:     receipt.BlockNumber,
		GasUsed:         receipt.GasUsed,
		GasPrice:        receipt.GasPrice,
		Success:         receipt.Success(),
		ErrorReason:     receipt.FailureReason,
		TxTimeMillis:    receipt.Duration.Milliseconds(),
		TotalTimeMillis: elapsed.Milliseconds(),
		Timestamp:       audit.Now(),
	}
	s.sink.Insert(ctx, audit.TableSettle, rec)
}
