// Command pcap-replay re-emits the relay's UDP mirror datagrams from a pcap
// capture with their original timing, for debugging consumers against field
// data. The reader is pure Go (pcapgo), so no libpcap is needed.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	pcapFile = flag.String("pcap", "", "Path to the pcap capture (required)")
	target   = flag.String("target", "127.0.0.1:5600", "UDP address to re-emit datagrams to")
	port     = flag.Int("port", 5600, "Only replay UDP packets with this destination port (0 = all)")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (2 = double speed)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}
	if *speed <= 0 {
		log.Fatal("speed must be positive")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open pcap file: %v", err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("failed to read pcap header: %v", err)
	}

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("failed to resolve target: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("failed to dial target: %v", err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := gopacket.NewPacketSource(reader, reader.LinkType())

	var sent, skipped int
	var lastCapture time.Time
	start := time.Now()

	for packet := range source.Packets() {
		select {
		case <-ctx.Done():
			log.Printf("stopping: %d datagrams sent, %d skipped", sent, skipped)
			return
		default:
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			skipped++
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			skipped++
			continue
		}
		if *port != 0 && int(udp.DstPort) != *port {
			skipped++
			continue
		}

		captureTime := packet.Metadata().Timestamp
		if !lastCapture.IsZero() {
			delay := time.Duration(float64(captureTime.Sub(lastCapture)) / *speed)
			if delay > 0 {
				select {
				case <-ctx.Done():
					log.Printf("stopping: %d datagrams sent, %d skipped", sent, skipped)
					return
				case <-time.After(delay):
				}
			}
		}
		lastCapture = captureTime

		if _, err := conn.Write(udp.Payload); err != nil {
			log.Printf("send failed: %v", err)
			continue
		}
		sent++

		if sent%1000 == 0 {
			log.Printf("replayed %d datagrams in %v", sent, time.Since(start).Round(time.Millisecond))
		}
	}

	if err := ctx.Err(); err == nil {
		log.Printf("replay complete: %d datagrams sent, %d skipped in %v",
			sent, skipped, time.Since(start).Round(time.Millisecond))
	}
}
