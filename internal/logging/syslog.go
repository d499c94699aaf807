//go:build !windows && !plan9

package logging

import "log/syslog"

func openSyslog(tag string) (syslogWriter, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}
	return w, nil
}
