// Package cmn discovers the on-chip descriptor tree of an Arm CMN mesh —
// its crosspoints (XPs), debug trace controllers (DTCs), and device nodes —
// by walking memory-mapped configuration registers, and indexes the result
// into a typed Mesh.
package cmn

import "fmt"

// NodeKind is the 16-bit por_xxx_node_info type tag identifying one of the
// CMN's node kinds.
type NodeKind uint16

// Node kinds, por_xxx_node_info bits [0:15].
const (
	KindDVM         NodeKind = 0x0001
	KindCFG         NodeKind = 0x0002
	KindDTC         NodeKind = 0x0003
	KindHNI         NodeKind = 0x0004
	KindHNF         NodeKind = 0x0005
	KindMXP         NodeKind = 0x0006
	KindSBSX        NodeKind = 0x0007
	KindHNFMPAMS    NodeKind = 0x0008
	KindHNFMPAMNS   NodeKind = 0x0009
	KindRNI         NodeKind = 0x000A
	KindRND         NodeKind = 0x000D
	KindRNSAM       NodeKind = 0x000F
	KindHNP         NodeKind = 0x0011
	KindCCGRA       NodeKind = 0x0103
	KindCCGHA       NodeKind = 0x0104
	KindCCLA        NodeKind = 0x0105
	KindCCLARNI     NodeKind = 0x0106
	KindAPB         NodeKind = 0x1000
)

var kindNames = map[NodeKind]string{
	KindDVM:       "DVM",
	KindCFG:       "CFG",
	KindDTC:       "DTC",
	KindHNI:       "HN-I",
	KindHNF:       "HN-F",
	KindMXP:       "XP",
	KindSBSX:      "SBSX",
	KindHNFMPAMS:  "HN-F_MPAM_S",
	KindHNFMPAMNS: "HN-F_MPAM_NS",
	KindRNI:       "RN-I",
	KindRND:       "RN-D",
	KindRNSAM:     "RN-SAM",
	KindHNP:       "HN-P",
	KindCCGRA:     "CCG_RA",
	KindCCGHA:     "CCG_HA",
	KindCCLA:      "CCLA",
	KindCCLARNI:   "CCLA_RNI",
	KindAPB:       "APB",
}

// String returns the CMN TRM node name, or a hex fallback for an unknown
// tag (discovery warns and skips these rather than failing).
func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%#04x)", uint16(k))
}

// Known reports whether k is one of the 18 enumerated node kinds.
func (k NodeKind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// DeviceType is the 5-bit por_mxp_device_port_connect_info device type
// field, a closed 32-entry table.
type DeviceType uint8

// Device types, por_mxp_device_port_connect_info_p0-5 bits [0:4].
const (
	DevReserved0    DeviceType = 0b00000
	DevRNI          DeviceType = 0b00001
	DevRND          DeviceType = 0b00010
	DevReserved3    DeviceType = 0b00011
	DevRNFCHIB      DeviceType = 0b00100
	DevRNFCHIBESAM  DeviceType = 0b00101
	DevRNFCHIA      DeviceType = 0b00110
	DevRNFCHIAESAM  DeviceType = 0b00111
	DevHNT          DeviceType = 0b01000
	DevHNI          DeviceType = 0b01001
	DevHND          DeviceType = 0b01010
	DevHNP          DeviceType = 0b01011
	DevSNFCHIC      DeviceType = 0b01100
	DevSBSX         DeviceType = 0b01101
	DevHNF          DeviceType = 0b01110
	DevSNFCHIE      DeviceType = 0b01111
	DevSNFCHID      DeviceType = 0b10000
	DevCXHA         DeviceType = 0b10001
	DevCXRA         DeviceType = 0b10010
	DevCXRH         DeviceType = 0b10011
	DevRNFCHID      DeviceType = 0b10100
	DevRNFCHIDESAM  DeviceType = 0b10101
	DevRNFCHIC      DeviceType = 0b10110
	DevRNFCHICESAM  DeviceType = 0b10111
	DevRNFCHIE      DeviceType = 0b11000
	DevRNFCHIEESAM  DeviceType = 0b11001
	DevReserved26   DeviceType = 0b11010
	DevReserved27   DeviceType = 0b11011
	DevMTSX         DeviceType = 0b11100
	DevHNV          DeviceType = 0b11101
	DevCCG          DeviceType = 0b11110
	DevReserved31   DeviceType = 0b11111
)

var deviceTypeNames = map[DeviceType]string{
	DevReserved0:   "Reserved",
	DevRNI:         "RN-I",
	DevRND:         "RN-D",
	DevReserved3:   "Reserved",
	DevRNFCHIB:     "RN-F_CHIB",
	DevRNFCHIBESAM: "RN-F_CHIB_ESAM",
	DevRNFCHIA:     "RN-F_CHIA",
	DevRNFCHIAESAM: "RN-F_CHIA_ESAM",
	DevHNT:         "HN-T",
	DevHNI:         "HN-I",
	DevHND:         "HN-D",
	DevHNP:         "HN-P",
	DevSNFCHIC:     "SN-F_CHIC",
	DevSBSX:        "SBSX",
	DevHNF:         "HN-F",
	DevSNFCHIE:     "SN-F_CHIE",
	DevSNFCHID:     "SN-F_CHID",
	DevCXHA:        "CXHA",
	DevCXRA:        "CXRA",
	DevCXRH:        "CXRH",
	DevRNFCHID:     "RN-F_CHID",
	DevRNFCHIDESAM: "RN-F_CHID_ESAM",
	DevRNFCHIC:     "RN-F_CHIC",
	DevRNFCHICESAM: "RN-F_CHIC_ESAM",
	DevRNFCHIE:     "RN-F_CHIE",
	DevRNFCHIEESAM: "RN-F_CHIE_ESAM",
	DevReserved26:  "Reserved",
	DevReserved27:  "Reserved",
	DevMTSX:        "MTSX",
	DevHNV:         "HN-V",
	DevCCG:         "CCG",
	DevReserved31:  "Reserved",
}

// String returns the CMN TRM device type name.
func (d DeviceType) String() string {
	if name, ok := deviceTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%#02x)", uint8(d))
}
