package pcap

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

// First bytes of a pcapng file: the section header block type.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type PcapReader interface {
	Capture(ctx context.Context) (<-chan gopacket.Packet, error)
}

// Read packets from a pcap or pcapng file.
type FileReader struct {
	PcapFile string
}

func NewFileReader(pcapfile string) *FileReader {
	return &FileReader{
		PcapFile: pcapfile,
	}
}

type packetDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func openCapture(f *os.File) (packetDataSource, error) {
	r := bufio.NewReader(f)
	magic, err := r.Peek(len(pcapngMagic))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read capture header")
	}

	if bytes.Equal(magic, pcapngMagic) {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

func (f FileReader) Capture(ctx context.Context) (<-chan gopacket.Packet, error) {
	file, err := os.Open(f.PcapFile)
	if err != nil {
		return nil, err
	}

	source, err := openCapture(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to open %s", f.PcapFile)
	}

	out := make(chan gopacket.Packet, 10)

	go func() {
		defer file.Close()
		defer close(out)
		packetSource := gopacket.NewPacketSource(source, source.LinkType())
		for packet := range packetSource.Packets() {
			select {
			case <-ctx.Done():
				return
			case out <- packet:
			}
		}
	}()

	return out, nil
}
