// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package adminapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes every promauto-registered collector in
// internal/metrics on the default registry promhttp scrapes from.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
