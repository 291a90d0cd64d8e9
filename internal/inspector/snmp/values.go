package snmp

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/HerbHall/hwmeter/internal/inspector"
)

// toUint64 reads a non-negative integer. Numeric strings are accepted since
// some UCD objects are DisplayStrings.
func toUint64(pdu gosnmp.SnmpPDU) (uint64, error) {
	if pdu.Type == gosnmp.OctetString {
		s := strings.TrimSpace(octets(pdu))
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, inspector.Failed("%s: not an unsigned integer: %q", pdu.Name, s)
		}
		return v, nil
	}
	n := gosnmp.ToBigInt(pdu.Value)
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, inspector.Failed("%s: value %s out of range", pdu.Name, n)
	}
	return n.Uint64(), nil
}

// toFloat reads a non-negative decimal, from either a numeric string such as
// laLoad's "0.10" or an integer type.
func toFloat(pdu gosnmp.SnmpPDU) (float64, error) {
	if pdu.Type == gosnmp.OctetString {
		s := strings.TrimSpace(octets(pdu))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, inspector.Failed("%s: not a non-negative number: %q", pdu.Name, s)
		}
		return v, nil
	}
	v, err := toUint64(pdu)
	if err != nil {
		return 0, err
	}
	return float64(v), nil
}

// toString reads a DisplayString.
func toString(pdu gosnmp.SnmpPDU) (string, error) {
	if pdu.Type != gosnmp.OctetString {
		return "", inspector.Failed("%s: want OCTET STRING, got %v", pdu.Name, pdu.Type)
	}
	return octets(pdu), nil
}

// toMAC reads a PhysAddress. Interfaces without one (loopback, tunnels)
// report an empty string, which is returned as "".
func toMAC(pdu gosnmp.SnmpPDU) (string, error) {
	if pdu.Type != gosnmp.OctetString {
		return "", inspector.Failed("%s: want OCTET STRING, got %v", pdu.Name, pdu.Type)
	}
	raw, _ := pdu.Value.([]byte)
	if len(raw) == 0 {
		return "", nil
	}
	return net.HardwareAddr(raw).String(), nil
}

func octets(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
