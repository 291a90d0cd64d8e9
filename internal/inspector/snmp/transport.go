package snmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/hwmeter/internal/inspector"
)

// Row is one entry of a walked table column. Index is the OID suffix below
// the column, e.g. "3" for ifIndex.3 or "10.0.0.5" for ipAdEntIfIndex.
type Row struct {
	Index string
	PDU   gosnmp.SnmpPDU
}

// Transport performs SNMP operations against one endpoint. Implementations
// return errors from the inspector family only.
type Transport interface {
	// Get fetches a single scalar OID.
	Get(ctx context.Context, ep Endpoint, oid string) (gosnmp.SnmpPDU, error)
	// Walk enumerates the table column rooted at oid. An empty column
	// yields no rows and no error.
	Walk(ctx context.Context, ep Endpoint, oid string) ([]Row, error)
}

// GoSNMPTransport implements Transport with one UDP session per call.
type GoSNMPTransport struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Compile-time interface guard.
var _ Transport = (*GoSNMPTransport)(nil)

// NewGoSNMPTransport creates a transport. Requests are not rate limited
// until SetRateLimit is called with a positive value.
func NewGoSNMPTransport(logger *zap.Logger) *GoSNMPTransport {
	return &GoSNMPTransport{
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
	}
}

// SetRateLimit caps the process-wide request rate. perSecond <= 0 removes the cap.
func (t *GoSNMPTransport) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		t.limiter.SetLimit(rate.Inf)
		return
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	t.limiter.SetBurst(burst)
	t.limiter.SetLimit(rate.Limit(perSecond))
}

func (t *GoSNMPTransport) connect(ctx context.Context, ep Endpoint) (*gosnmp.GoSNMP, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, inspector.Unreachable(fmt.Errorf("rate limit wait: %w", err))
	}
	g := &gosnmp.GoSNMP{
		Target:         ep.Address,
		Port:           ep.Port,
		Transport:      "udp",
		Community:      ep.Community,
		Version:        ep.Version,
		Timeout:        ep.Timeout,
		Retries:        ep.Retries,
		Context:        ctx,
		MaxOids:        gosnmp.MaxOids,
		MaxRepetitions: 25,
	}
	if err := g.Connect(); err != nil {
		return nil, inspector.Unreachable(fmt.Errorf("connect %s: %w", ep, err))
	}
	return g, nil
}

// Get issues a single-OID GET.
func (t *GoSNMPTransport) Get(ctx context.Context, ep Endpoint, oid string) (gosnmp.SnmpPDU, error) {
	g, err := t.connect(ctx, ep)
	if err != nil {
		return gosnmp.SnmpPDU{}, err
	}
	defer g.Conn.Close()

	pkt, err := g.Get([]string{oid})
	if err != nil {
		t.logger.Debug("snmp get failed",
			zap.String("endpoint", ep.String()),
			zap.String("oid", oid),
			zap.Error(err),
		)
		return gosnmp.SnmpPDU{}, classify(fmt.Errorf("get %s: %w", oid, err))
	}
	if pkt.Error != gosnmp.NoError {
		offending := "?"
		if i := int(pkt.ErrorIndex); i > 0 && i <= len(pkt.Variables) {
			offending = pkt.Variables[i-1].Name
		}
		t.logger.Error("snmp error status",
			zap.String("endpoint", ep.String()),
			zap.String("status", fmt.Sprint(pkt.Error)),
			zap.Uint8("error_index", pkt.ErrorIndex),
			zap.String("varbind", offending),
		)
		return gosnmp.SnmpPDU{}, inspector.Failed("%v at %s", pkt.Error, offending)
	}
	if len(pkt.Variables) == 0 {
		return gosnmp.SnmpPDU{}, inspector.Failed("get %s: empty response", oid)
	}
	pdu := pkt.Variables[0]
	if missing(pdu) {
		return gosnmp.SnmpPDU{}, inspector.Failed("get %s: %v", oid, pdu.Type)
	}
	return pdu, nil
}

// Walk enumerates every OID below the column, using GETBULK for v2c and
// GETNEXT for v1. Sparse and multi-component indices are preserved.
func (t *GoSNMPTransport) Walk(ctx context.Context, ep Endpoint, oid string) ([]Row, error) {
	g, err := t.connect(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	var pdus []gosnmp.SnmpPDU
	if ep.Version == gosnmp.Version1 {
		pdus, err = g.WalkAll(oid)
	} else {
		pdus, err = g.BulkWalkAll(oid)
	}
	if err != nil {
		t.logger.Debug("snmp walk failed",
			zap.String("endpoint", ep.String()),
			zap.String("oid", oid),
			zap.Error(err),
		)
		return nil, classify(fmt.Errorf("walk %s: %w", oid, err))
	}
	return rowsUnder(oid, pdus), nil
}

// rowsUnder keeps the PDUs strictly below base and splits off their index.
func rowsUnder(base string, pdus []gosnmp.SnmpPDU) []Row {
	prefix := strings.TrimPrefix(base, ".") + "."
	rows := make([]Row, 0, len(pdus))
	for _, pdu := range pdus {
		if missing(pdu) {
			continue
		}
		name := strings.TrimPrefix(pdu.Name, ".")
		index, ok := strings.CutPrefix(name, prefix)
		if !ok || index == "" {
			continue
		}
		rows = append(rows, Row{Index: index, PDU: pdu})
	}
	return rows
}

func missing(pdu gosnmp.SnmpPDU) bool {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return true
	}
	return false
}

// classify maps gosnmp errors into the inspector family. Timeouts, refused
// connections and cancellation mean the endpoint is unreachable; anything
// else (decode failures, agent errors) is an ordinary inspection failure.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return inspector.Unreachable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return inspector.Unreachable(err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection refused") {
		return inspector.Unreachable(err)
	}
	return inspector.Failed("%w", err)
}
