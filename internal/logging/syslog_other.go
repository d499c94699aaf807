//go:build windows || plan9

package logging

import "errors"

func openSyslog(string) (syslogWriter, error) {
	return nil, errors.New("syslog is not supported on this platform")
}
