package admin

import "strings"

// MasterInfo is sentinel's current view of the monitored master.
type MasterInfo struct {
	IP            string
	Port          string
	Flags         []string
	FailoverState string
}

// HasFlag reports whether sentinel flagged the master with the given flag,
// e.g. "s_down" or "failover_in_progress".
func (m *MasterInfo) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Down reports whether sentinel considers the master unavailable.
func (m *MasterInfo) Down() bool {
	return m.HasFlag("s_down") || m.HasFlag("o_down")
}

// FailoverInProgress reports whether a failover is currently running.
func (m *MasterInfo) FailoverInProgress() bool {
	return m.HasFlag("failover_in_progress")
}

func masterInfoFromMap(m map[string]string) *MasterInfo {
	info := &MasterInfo{
		IP:            m["ip"],
		Port:          m["port"],
		FailoverState: m["failover-state"],
	}
	if flags := m["flags"]; flags != "" {
		info.Flags = strings.Split(flags, ",")
	}
	return info
}

// infoField extracts one "key:value" field from an INFO response.
func infoField(info, key string) string {
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	// Some proxies relay INFO with bare newlines.
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
