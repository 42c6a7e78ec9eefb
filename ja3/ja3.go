package ja3

// https://github.com/salesforce/ja3

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"

	"github.com/mel2oo/tlsprobe/gnet"
	"github.com/mel2oo/tlsprobe/slices"
)

const (
	dashByte  = byte(45)
	commaByte = byte(44)
)

// Returns the JA3 string of the tls client hello:
// SSLVersion,Cipher,SSLExtension,EllipticCurve,EllipticCurvePointFormat
//
// GREASE values are left out of every list.
func String(clientHello gnet.TLSClientHello) string {
	byteString := make([]byte, 0, 256)

	// Version
	byteString = strconv.AppendUint(byteString, uint64(clientHello.Version), 10)
	byteString = append(byteString, commaByte)

	// Cipher Suites
	byteString = appendList(byteString, clientHello.CipherSuites)
	byteString = append(byteString, commaByte)

	// Extensions
	byteString = appendList(byteString, clientHello.ExtensionTypes())
	byteString = append(byteString, commaByte)

	// Suppported Elliptic Curves
	byteString = appendList(byteString, clientHello.SupportedCurves())
	byteString = append(byteString, commaByte)

	// Elliptic Curve Point Formats
	points := clientHello.SupportedPoints()
	for i, val := range points {
		byteString = strconv.AppendUint(byteString, uint64(val), 10)
		if i < len(points)-1 {
			byteString = append(byteString, dashByte)
		}
	}

	return string(byteString)
}

// Returns the JA3 fingerprint hash of the tls client hello.
func Hash(clientHello gnet.TLSClientHello) string {
	h := md5.Sum([]byte(String(clientHello)))
	return hex.EncodeToString(h[:])
}

func notGREASE(v uint16) bool {
	return !gnet.IsGREASE(v)
}

// Appends vals as a dash-separated list, skipping GREASE values.
func appendList(byteString []byte, vals []uint16) []byte {
	for i, val := range slices.Filter(vals, notGREASE) {
		if i > 0 {
			byteString = append(byteString, dashByte)
		}
		byteString = strconv.AppendUint(byteString, uint64(val), 10)
	}
	return byteString
}
