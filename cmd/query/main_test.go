package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func fakeAPI() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/teams", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"teams":["Alpha","Beta"]}`))
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accuracy":100,"results":[{"team":"Alpha","opponent":"Beta","prediction":"W","actual_result":"W","venue":"Home","date":null}]}`))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"started":true}`))
	})
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	convey.Convey("Given a running API", t, func() {
		srv := fakeAPI()
		defer srv.Close()
		ctx := context.Background()
		var out bytes.Buffer

		convey.Convey("When no team is given", func() {
			convey.So(run(ctx, []string{"-url", srv.URL}, &out), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldEqual, "Alpha\nBeta\n")
		})

		convey.Convey("When a team is given", func() {
			convey.So(run(ctx, []string{"-url", srv.URL, "-team", "Alpha"}, &out), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "accuracy: 100.00% over 1 matches")
		})

		convey.Convey("When JSON output is requested", func() {
			convey.So(run(ctx, []string{"-url", srv.URL, "-team", "Alpha", "-json"}, &out), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, `"accuracy": 100`)
		})

		convey.Convey("When stats are requested", func() {
			convey.So(run(ctx, []string{"-url", srv.URL, "-stats"}, &out), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, `"started": true`)
		})

		convey.Convey("When flags are invalid", func() {
			convey.So(run(ctx, []string{"-bogus"}, &out), convey.ShouldNotBeNil)
		})
	})
}
