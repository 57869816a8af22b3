package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/farol/client"
	"github.com/luma/farol/storage"
	"github.com/luma/farol/transport"
)

var _ = Describe("client / Conn", func() {
	var (
		tcp  *transport.TCP
		conn *client.Conn
	)

	BeforeEach(func() {
		log, err := zap.NewDevelopment()
		Expect(err).To(Succeed())

		tcp = transport.NewTCP(transport.Options{
			Log:          log,
			NumListeners: 1,
			Port:         6683,
			Reuseport:    true,
			Store:        storage.NewInmemoryStore(),
		})
		Expect(tcp.Start(context.Background())).To(Succeed())

		conn = client.New(log.Named("client"))

		Eventually(func() error {
			return conn.Connect(context.Background(), "0.0.0.0:6683")
		}, 5*time.Second, 10*time.Millisecond).Should(Succeed())
	})

	AfterEach(func() {
		conn.Close()
		Expect(tcp.Close()).To(Succeed())
	})

	It("pings", func() {
		Expect(conn.Ping(context.Background())).To(Succeed())
	})

	It("echoes arbitrary bytes", func() {
		msg := []byte("hello\r\nwith framing bytes")

		Expect(conn.Echo(context.Background(), msg)).To(Equal(msg))
	})

	It("sets then gets a key", func() {
		Expect(conn.Set(context.Background(), "foo", []byte("bar"))).To(Succeed())

		Expect(conn.Get(context.Background(), "foo")).To(Equal([]byte("bar")))
	})

	It("reports a missing key as ErrKeyNotFound", func() {
		_, err := conn.Get(context.Background(), "missing")
		Expect(err).To(MatchError(storage.ErrKeyNotFound))
	})

	It("deletes keys and counts how many existed", func() {
		Expect(conn.Set(context.Background(), "foo", []byte("bar"))).To(Succeed())

		Expect(conn.Del(context.Background(), "foo", "missing")).To(Equal(uint64(1)))
	})

	It("counts existing keys", func() {
		Expect(conn.Set(context.Background(), "one", []byte("1"))).To(Succeed())
		Expect(conn.Set(context.Background(), "two", []byte("2"))).To(Succeed())

		Expect(conn.Exists(context.Background(), "one", "two", "missing")).To(Equal(uint64(2)))
	})

	It("lists keys", func() {
		Expect(conn.Set(context.Background(), "one", []byte("1"))).To(Succeed())
		Expect(conn.Set(context.Background(), "two", []byte("2"))).To(Succeed())

		Expect(conn.Keys(context.Background())).To(ConsistOf("one", "two"))
	})

	It("quits cleanly", func() {
		Expect(conn.Quit(context.Background())).To(Succeed())

		// The connection is gone after a QUIT.
		Expect(conn.Ping(context.Background())).To(MatchError(client.ErrNotConnected))
	})

	It("honours the context deadline", func() {
		ctx, cancel := context.WithDeadline(
			context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		err := conn.Ping(ctx)
		Expect(err).To(HaveOccurred())
	})
})
