// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("information model", func() {

	DescribeTable("names kinds",
		func(k Kind, name string) {
			Expect(k.String()).To(Equal(name))
			var back Kind
			Expect(back.UnmarshalText([]byte(name))).To(Succeed())
			Expect(back).To(Equal(k))
		},
		Entry(nil, OK, "OK"),
		Entry(nil, ERR, "ERR"),
		Entry(nil, ConnErr, "CONN_ERR"),
		Entry(nil, TimeoutConnect, "TIMEOUT_CONNECT"),
		Entry(nil, TimeoutResponse, "TIMEOUT_RESPONSE"),
		Entry(nil, Close, "CLOSE"),
	)

	It("handles unknown kinds", func() {
		Expect(Kind(42).String()).To(Equal("Kind(42)"))
		var k Kind
		Expect(k.UnmarshalText([]byte("NOPE"))).NotTo(Succeed())
		Expect(OK.IsSuccess()).To(BeTrue())
		Expect(Close.IsSuccess()).To(BeFalse())
	})

	It("maps timeout windows", func() {
		Expect(ConnectWindow.String()).To(Equal("connect"))
		Expect(ConnectWindow.TimeoutKind()).To(Equal(TimeoutConnect))
		Expect(ResponseWindow.String()).To(Equal("wait"))
		Expect(ResponseWindow.TimeoutKind()).To(Equal(TimeoutResponse))
	})

	It("renders targets and results", func() {
		t := Target{Host: "192.0.2.1", Port: 80}
		Expect(t.String()).To(Equal("192.0.2.1:80"))

		r := Result{
			Target:  t,
			Kind:    TimeoutResponse,
			Details: "HTTP/1.0 200 OK\r\nServer: foo\r\n",
			Elapsed: 2500 * time.Millisecond,
		}
		Expect(r.ElapsedSeconds()).To(BeNumerically("~", 2.5, 0.001))
		Expect(r.FirstLine()).To(Equal("HTTP/1.0 200 OK"))
		Expect(Result{}.FirstLine()).To(BeEmpty())

		var m map[string]any
		Expect(json.Unmarshal(Successful(json.Marshal(r)), &m)).To(Succeed())
		Expect(m).To(HaveKeyWithValue("kind", "TIMEOUT_RESPONSE"))
		Expect(m).To(HaveKeyWithValue("host", "192.0.2.1"))
		Expect(m).To(HaveKeyWithValue("port", BeNumerically("==", 80)))
	})

})
