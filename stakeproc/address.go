package stakeproc

import (
	"github.com/avastar/GraftNetwork/chain"
	"github.com/avastar/GraftNetwork/config"
	"github.com/avastar/GraftNetwork/cryptoops"
)

// accountAddressString renders addr the way this chain's wallet code
// does: a varint-encoded, network-tagged, checksummed, base58 string.
// It is not cosmetic — it is the exact byte sequence a real supernode
// hashes and signs over, so verification must reproduce it precisely
// rather than hash the raw public keys directly.
func accountAddressString(net chain.NetType, addr chain.Address, cfg config.Config, verifier cryptoops.Verifier) string {
	prefix := addressPrefix(net, cfg)

	data := make([]byte, 0, len(prefix)+64+4)
	data = append(data, prefix...)
	data = append(data, addr.SpendPublicKey[:]...)
	data = append(data, addr.ViewPublicKey[:]...)

	checksum := verifier.CnFastHash(data)
	data = append(data, checksum[:4]...)

	return base58EncodeBlocks(data)
}

func addressPrefix(net chain.NetType, cfg config.Config) []byte {
	switch net {
	case chain.NetTest:
		return encodeVarint(cfg.AddressPrefixTestnet)
	case chain.NetStage:
		return encodeVarint(cfg.AddressPrefixStagenet)
	default:
		return encodeVarint(cfg.AddressPrefixMain)
	}
}

// encodeVarint encodes v the way tools::get_varint_data does: groups
// of 7 bits, least-significant group first, with the high bit of every
// byte but the last set as a continuation flag.
func encodeVarint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

const (
	base58Alphabet       = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	base58FullBlockSize  = 8
	base58FullEncodedLen = 11
)

// base58EncodedBlockSizes[n] is the encoded length of an n-byte block,
// for n in [0, base58FullBlockSize]. Monero's base58 encodes in fixed
// 8-byte blocks rather than treating the whole buffer as one big
// integer, so short trailing blocks get a correspondingly short
// (rather than zero-padded to 11) encoded run.
var base58EncodedBlockSizes = [base58FullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

// base58EncodeBlocks encodes data the way the reference wallet code's
// tools::base58::encode does: full 8-byte blocks each become 11
// characters, and any final partial block becomes
// base58EncodedBlockSizes[len] characters.
func base58EncodeBlocks(data []byte) string {
	out := make([]byte, 0, (len(data)/base58FullBlockSize+1)*base58FullEncodedLen)

	full := len(data) / base58FullBlockSize
	for i := 0; i < full; i++ {
		block := data[i*base58FullBlockSize : (i+1)*base58FullBlockSize]
		out = append(out, base58EncodeBlock(block, base58FullEncodedLen)...)
	}

	if rem := len(data) % base58FullBlockSize; rem > 0 {
		block := data[full*base58FullBlockSize:]
		out = append(out, base58EncodeBlock(block, base58EncodedBlockSizes[rem])...)
	}

	return string(out)
}

func base58EncodeBlock(block []byte, encodedLen int) []byte {
	var num uint64
	for _, b := range block {
		num = num<<8 | uint64(b)
	}

	buf := make([]byte, encodedLen)
	for i := encodedLen - 1; i >= 0; i-- {
		buf[i] = base58Alphabet[num%58]
		num /= 58
	}
	return buf
}
