package simplevfs

import (
	"errors"
	"fmt"
	"time"
)

// NetworkInterface describes one enumerated network interface of a client.
type NetworkInterface struct {
	IfName     string   `json:"ifname"`
	MACAddress string   `json:"mac_address,omitempty"`
	Addresses  []string `json:"addresses,omitempty"`
}

// ClientInfo describes the collection agent installed on a client.
type ClientInfo struct {
	ClientName    string `json:"client_name,omitempty"`
	ClientVersion string `json:"client_version,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// ClientSummary is a flattened, read-only composite view of a client object.
type ClientSummary struct {
	URN          URN                `json:"urn"`
	Hostname     string             `json:"hostname,omitempty"`
	System       string             `json:"system,omitempty"`
	OSRelease    string             `json:"os_release,omitempty"`
	Kernel       string             `json:"kernel,omitempty"`
	FQDN         string             `json:"fqdn,omitempty"`
	Architecture string             `json:"architecture,omitempty"`
	InstallDate  time.Time          `json:"install_date,omitempty"`
	Usernames    []string           `json:"usernames,omitempty"`
	Interfaces   []NetworkInterface `json:"interfaces,omitempty"`
	ClientInfo   ClientInfo         `json:"client_info,omitempty"`

	// Timestamp is the maximum timestamp across all consulted attributes,
	// falling back to the handle's open or creation time when none were
	// ever set.
	Timestamp time.Time `json:"timestamp"`
}

// summaryAttrs are the attributes consulted when building a summary.
var summaryAttrs = []string{
	AttrHostname, AttrSystem, AttrOSRelease, AttrKernel, AttrArch,
	AttrFQDN, AttrInstallDate, AttrUsernames, AttrInterfaces, AttrClientInfo,
}

// GetSummary builds the flattened view of a client object. Missing
// attributes degrade to empty values; aggregation never fails because data
// was not collected.
func (o *Object) GetSummary() (*ClientSummary, error) {
	if o.kind != KindClient {
		return nil, &ObjectError{URN: o.urn, Op: "summary",
			Err: fmt.Errorf("kind %s does not provide a summary", o.kind)}
	}

	s := &ClientSummary{URN: o.urn}

	s.Hostname, _ = o.GetString(AttrHostname)
	s.System, _ = o.GetString(AttrSystem)
	s.OSRelease, _ = o.GetString(AttrOSRelease)
	s.Kernel, _ = o.GetString(AttrKernel)
	s.FQDN, _ = o.GetString(AttrFQDN)
	s.Architecture, _ = o.GetString(AttrArch)
	s.InstallDate, _ = o.GetTime(AttrInstallDate)
	s.Usernames, _ = o.GetStringList(AttrUsernames)

	if err := o.GetJSON(AttrInterfaces, &s.Interfaces); err != nil && !errors.Is(err, ErrAttributeNotSet) {
		return nil, err
	}
	if err := o.GetJSON(AttrClientInfo, &s.ClientInfo); err != nil && !errors.Is(err, ErrAttributeNotSet) {
		return nil, err
	}

	for _, name := range summaryAttrs {
		if rec, ok := o.baseline[name]; ok && rec.Timestamp.After(s.Timestamp) {
			s.Timestamp = rec.Timestamp
		}
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = o.openedAt
	}
	return s, nil
}
