package media

import "github.com/pion/rtp"

const (
	naluTypeSTAPA = 24
	naluTypeFUA   = 28
)

// H264Depacketizer extracts NAL units from RTP H264 payloads. It maintains
// per-instance state for FU-A fragment reassembly; use one instance per
// track. A gap in the RTP sequence invalidates the partial fragment chain so
// a lost packet cannot splice two unrelated NAL units together.
type H264Depacketizer struct {
	fuaBuf    []byte
	fuaActive bool
	lastSeq   uint16
	haveSeq   bool
}

// NewH264Depacketizer creates a depacketizer with its own reassembly buffer.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// DepacketizePacket consumes one RTP packet and returns zero or more complete
// NAL units.
func (d *H264Depacketizer) DepacketizePacket(pkt *rtp.Packet) [][]byte {
	return d.Depacketize(pkt.SequenceNumber, pkt.Payload)
}

// Depacketize consumes one RTP payload with its sequence number. Handles
// single NAL, STAP-A and FU-A packet types.
func (d *H264Depacketizer) Depacketize(seq uint16, payload []byte) [][]byte {
	if d.haveSeq && seq != d.lastSeq+1 {
		// Packet loss mid-reassembly; drop the partial chain.
		d.fuaBuf = nil
		d.fuaActive = false
	}
	d.lastSeq = seq
	d.haveSeq = true

	if len(payload) < 1 {
		return nil
	}

	naluType := payload[0] & 0x1f
	switch {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}
	case naluType == naluTypeSTAPA:
		return d.depacketizeSTAPA(payload)
	case naluType == naluTypeFUA:
		return d.depacketizeFUA(payload)
	default:
		return nil
	}
}

func (d *H264Depacketizer) depacketizeSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	offset := 1 // skip the STAP-A indicator byte

	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if size == 0 || offset+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[offset:offset+size])
		offset += size
	}
	return nalus
}

func (d *H264Depacketizer) depacketizeFUA(payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}

	fnri := payload[0] & 0xe0 // F + NRI bits from the FU indicator
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	naluType := fuHeader & 0x1f

	switch {
	case start:
		// Reconstruct the NAL header: F+NRI from the indicator, type from
		// the FU header.
		d.fuaBuf = append([]byte{fnri | naluType}, payload[2:]...)
		d.fuaActive = true
	case d.fuaActive:
		d.fuaBuf = append(d.fuaBuf, payload[2:]...)
	default:
		// Orphan fragment; its start was never seen.
		return nil
	}

	if end {
		nalu := d.fuaBuf
		d.fuaBuf = nil
		d.fuaActive = false
		return [][]byte{nalu}
	}
	return nil
}
