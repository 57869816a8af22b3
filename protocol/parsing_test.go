package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/farol/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("Check()", func() {
		It("returns the exact end offset of a complete frame", func() {
			end, err := protocol.Check([]byte("+OK\r\n"))
			Expect(err).To(Succeed())
			Expect(end).To(Equal(5))
		})

		It("does not count trailing bytes beyond the frame", func() {
			end, err := protocol.Check([]byte("+OK\r\n+MORE\r\n"))
			Expect(err).To(Succeed())
			Expect(end).To(Equal(5))
		})

		It("is pure, checking the same span twice yields the same result", func() {
			data := []byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")

			end1, err1 := protocol.Check(data)
			end2, err2 := protocol.Check(data)

			Expect(err1).To(Succeed())
			Expect(err2).To(Succeed())
			Expect(end1).To(Equal(end2))
		})

		It("returns ErrIncomplete for every proper prefix of a frame", func() {
			frames := []string{
				"+OK\r\n",
				"-ERR no such key\r\n",
				":1000\r\n",
				"$5\r\nhello\r\n",
				"$-1\r\n",
				"*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n",
			}

			for _, frame := range frames {
				for i := 0; i < len(frame); i++ {
					_, err := protocol.Check([]byte(frame)[:i])
					Expect(err).To(MatchError(protocol.ErrIncomplete),
						"prefix %q should be incomplete", frame[:i])
				}
			}
		})

		It("rejects an unknown sigil byte", func() {
			_, err := protocol.Check([]byte("?what\r\n"))
			Expect(errors.Is(err, protocol.ErrUnknownSigil)).To(BeTrue())
			Expect(protocol.IsProtocolError(err)).To(BeTrue())
		})

		It("rejects a lone LF as a line terminator", func() {
			_, err := protocol.Check([]byte("+OK\n"))
			Expect(errors.Is(err, protocol.ErrBadLineEnding)).To(BeTrue())
		})

		It("rejects a CR that is not followed by LF", func() {
			_, err := protocol.Check([]byte("+O\rK\r\n"))
			Expect(errors.Is(err, protocol.ErrBadLineEnding)).To(BeTrue())
		})

		It("rejects non-digit bytes in an integer", func() {
			_, err := protocol.Check([]byte(":12a\r\n"))
			Expect(errors.Is(err, protocol.ErrBadInteger)).To(BeTrue())
		})

		It("rejects a signed integer", func() {
			_, err := protocol.Check([]byte(":-5\r\n"))
			Expect(errors.Is(err, protocol.ErrBadInteger)).To(BeTrue())
		})

		It("rejects an integer overflowing 64 bits", func() {
			// MaxUint64 is 18446744073709551615
			_, err := protocol.Check([]byte(":18446744073709551616\r\n"))
			Expect(errors.Is(err, protocol.ErrBadInteger)).To(BeTrue())
		})

		It("rejects a negative bulk length other than -1", func() {
			_, err := protocol.Check([]byte("$-2\r\nxx\r\n"))
			Expect(errors.Is(err, protocol.ErrBadBulkLength)).To(BeTrue())
		})

		It("rejects a bulk length beyond the documented maximum", func() {
			_, err := protocol.Check([]byte("$536870913\r\n"))
			Expect(errors.Is(err, protocol.ErrBadBulkLength)).To(BeTrue())
		})

		It("rejects a bulk payload without a CRLF trailer", func() {
			_, err := protocol.Check([]byte("$5\r\nhelloXX"))
			Expect(errors.Is(err, protocol.ErrBadBulkEnding)).To(BeTrue())
		})

		It("rejects a bulk payload that is too long for it's declared length", func() {
			_, err := protocol.Check([]byte("$3\r\nhello\r\n"))
			Expect(errors.Is(err, protocol.ErrBadBulkEnding)).To(BeTrue())
		})

		It("rejects arrays nested beyond the documented maximum depth", func() {
			var data []byte
			for i := 0; i <= protocol.MaxArrayDepth; i++ {
				data = append(data, []byte("*1\r\n")...)
			}

			_, err := protocol.Check(data)
			Expect(errors.Is(err, protocol.ErrArrayTooDeep)).To(BeTrue())
		})

		It("accepts a nested array and spans all elements", func() {
			data := []byte("*2\r\n*1\r\n+a\r\n:7\r\n")

			end, err := protocol.Check(data)
			Expect(err).To(Succeed())
			Expect(end).To(Equal(len(data)))
		})
	})

	Describe("Parse()", func() {
		It("parses a simple string", func() {
			frame, err := protocol.Parse([]byte("+OK\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Simple("OK")))
		})

		It("parses an error string", func() {
			frame, err := protocol.Parse([]byte("-ERR no such key\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Error("ERR no such key")))
		})

		It("parses an integer", func() {
			frame, err := protocol.Parse([]byte(":1000\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Integer(1000)))
		})

		It("parses a bulk payload", func() {
			frame, err := protocol.Parse([]byte("$5\r\nhello\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Bulk("hello")))
		})

		It("parses an empty bulk payload", func() {
			frame, err := protocol.Parse([]byte("$0\r\n\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Bulk("")))
		})

		It("parses a bulk payload containing CRLF bytes", func() {
			frame, err := protocol.Parse([]byte("$7\r\nab\r\ncd\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Bulk("ab\r\ncd")))
		})

		It("parses null", func() {
			frame, err := protocol.Parse([]byte("$-1\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Null{}))
		})

		It("parses an array of bulk payloads", func() {
			frame, err := protocol.Parse([]byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Array{
				protocol.Bulk("foo"),
				protocol.Bulk("bar"),
			}))
		})

		It("parses an empty array", func() {
			frame, err := protocol.Parse([]byte("*0\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Array{}))
		})

		It("parses a nested array", func() {
			frame, err := protocol.Parse([]byte("*2\r\n*2\r\n+a\r\n:7\r\n$-1\r\n"))
			Expect(err).To(Succeed())
			Expect(frame).To(Equal(protocol.Array{
				protocol.Array{protocol.Simple("a"), protocol.Integer(7)},
				protocol.Null{},
			}))
		})

		It("returns owned bytes that do not alias the input span", func() {
			data := []byte("$3\r\nfoo\r\n")

			frame, err := protocol.Parse(data)
			Expect(err).To(Succeed())

			copy(data, []byte("$3\r\nXXX\r\n"))
			Expect(frame).To(Equal(protocol.Bulk("foo")))
		})

		It("rejects a simple string that is not valid UTF-8", func() {
			_, err := protocol.Parse([]byte("+\xff\xfe\r\n"))
			Expect(errors.Is(err, protocol.ErrNotText)).To(BeTrue())
		})
	})
})
