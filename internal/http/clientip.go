package http

import (
	"net"
	stdhttp "net/http"
	"strings"
)

// ClientIP resolves the originating address of req. Forwarding headers are honoured only when
// the TCP peer is a trusted proxy; X-Forwarded-For is walked right to left and the first
// untrusted hop wins.
func ClientIP(req *stdhttp.Request, trusted []*net.IPNet) string {
	if req == nil {
		return ""
	}

	peer := remoteHost(req.RemoteAddr)
	peerIP := net.ParseIP(peer)
	if peerIP == nil || !isTrusted(peerIP, trusted) {
		return peer
	}

	if forwarded := req.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := net.ParseIP(strings.TrimSpace(hops[i]))
			if hop == nil {
				return peer
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop.String()
			}
		}
	}

	if realIP := net.ParseIP(strings.TrimSpace(req.Header.Get("X-Real-IP"))); realIP != nil {
		return realIP.String()
	}

	return peer
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}
