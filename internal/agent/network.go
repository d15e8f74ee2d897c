package agent

import (
	"net"

	"github.com/huin/goupnp/dcps/internetgateway2"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// upnpLeaseDuration is the lease, in seconds, requested for every port
// mapping; 0 would ask the gateway for a lease that never expires, which
// not every IGD honors reliably, so a generous bounded one is used instead
// (mirrors original_source/buckle/src/upnp.rs's 30-second easy_upnp
// duration, extended here since buckle renews nothing on a timer).
const upnpLeaseDuration = 3600

// portMapper is satisfied by every WANIPConnection/WANPPPConnection client
// goupnp's IGD discovery can return; only AddPortMapping is needed.
type portMapper interface {
	AddPortMapping(newRemoteHost string, newExternalPort uint16, newProtocol string, newInternalPort uint16, newInternalClient string, newEnabled bool, newPortMappingDescription string, newLeaseDuration uint32) error
}

// exposePortUPnP asks the LAN's UPnP Internet Gateway Device to forward an
// external port to this host, grounded on
// original_source/buckle/src/client.rs's NetworkClient.expose_port and
// upnp.rs's PortForward→UpnpConfig mapping. The generated IGD SOAP clients
// in github.com/huin/goupnp don't take a context, so discovery and the
// mapping call are best-effort and not cancellable mid-flight.
func exposePortUPnP(pf PortForward) error {
	internalIP, err := outboundIP()
	if err != nil {
		return err
	}

	mappers, err := discoverPortMappers()
	if err != nil {
		return err
	}
	if len(mappers) == 0 {
		return trunkerr.New(trunkerr.KindSubservice, "no UPnP internet gateway device found on the network")
	}

	var lastErr error
	for _, m := range mappers {
		err := m.AddPortMapping("", pf.Port, string(pf.Protocol), pf.Port, internalIP, true, pf.Name, upnpLeaseDuration)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return trunkerr.Wrap(trunkerr.KindSubservice, lastErr, "failed to add UPnP port mapping for %s/%d", pf.Protocol, pf.Port)
}

func discoverPortMappers() ([]portMapper, error) {
	var mappers []portMapper

	ipClients, _, err := internetgateway2.NewWANIPConnection1Clients()
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to discover WANIPConnection1 clients")
	}
	for _, c := range ipClients {
		mappers = append(mappers, c)
	}

	ip2Clients, _, err := internetgateway2.NewWANIPConnection2Clients()
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to discover WANIPConnection2 clients")
	}
	for _, c := range ip2Clients {
		mappers = append(mappers, c)
	}

	pppClients, _, err := internetgateway2.NewWANPPPConnection1Clients()
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindSubservice, err, "failed to discover WANPPPConnection1 clients")
	}
	for _, c := range pppClients {
		mappers = append(mappers, c)
	}

	return mappers, nil
}

// outboundIP finds the local address the kernel would route a LAN packet
// through, used as the port mapping's internal client address.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "192.0.2.1:80")
	if err != nil {
		return "", trunkerr.Wrap(trunkerr.KindIO, err, "failed to determine outbound address")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
