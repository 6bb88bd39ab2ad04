package event

// bitRange is an inclusive [lo, hi] range within the 64-bit watchpoint
// match word, matching the TRM's own field-range notation.
type bitRange struct{ lo, hi uint }

// matchFieldTable maps (channel, group, field) to the field's position
// within the 64-bit word a watchpoint compares. Each group is a distinct
// filter set with its own packed layout — wp_grp selects which set the
// hardware applies — so a field name resolves only within the group it
// was declared in. Field widths follow the MPAM-enabled flit layout the
// trace decoder uses.
var matchFieldTable = map[Channel][3]map[string]bitRange{
	ChannelReq: {
		{
			"tgtid":  {0, 10},
			"srcid":  {11, 21},
			"txnid":  {22, 33},
			"opcode": {34, 40},
			"lpid":   {41, 45},
		},
		{
			"addr": {0, 51},
			"mpam": {52, 62},
		},
		{},
	},
	ChannelRsp: {
		{
			"tgtid":  {0, 10},
			"srcid":  {11, 21},
			"txnid":  {22, 33},
			"opcode": {34, 38},
			"cbusy":  {39, 41},
			"dbid":   {42, 53},
		},
		{},
		{},
	},
	ChannelSnp: {
		{
			"srcid":  {0, 10},
			"fwdnid": {11, 21},
			"txnid":  {22, 33},
			"opcode": {34, 38},
			"mpam":   {39, 49},
		},
		{
			"addr": {0, 48},
		},
		{},
	},
	ChannelDat: {
		{
			"tgtid":   {0, 10},
			"srcid":   {11, 21},
			"txnid":   {22, 33},
			"opcode":  {34, 37},
			"homenid": {38, 48},
		},
		{
			"dbid":    {0, 11},
			"resp":    {12, 14},
			"datasrc": {15, 18},
			"cbusy":   {19, 21},
		},
		{},
	},
}

// opcodeTable maps the mnemonic names accepted in opcode=<name> to their
// CHI encoding, so event strings can read "opcode=readshared" instead of
// a raw numeric code. Numeric opcodes (opcode=0x7) are always accepted too.
var opcodeTable = map[Channel]map[string]uint64{
	ChannelReq: {
		"reqlcrdreturn":  0x00,
		"readshared":     0x01,
		"readclean":      0x02,
		"readonce":       0x03,
		"readnosnp":      0x04,
		"pcrdreturn":     0x05,
		"readunique":     0x07,
		"cleanshared":    0x08,
		"cleaninvalid":   0x09,
		"makeinvalid":    0x0A,
		"cleanunique":    0x0B,
		"makeunique":     0x0C,
		"evict":          0x0D,
		"writenosnpptl":  0x18,
		"writenosnpfull": 0x19,
		"writeuniqueptl": 0x1C,
		"writeuniquefull": 0x1D,
	},
	ChannelRsp: {
		"rsplcrdreturn": 0x00,
		"snpresp":       0x01,
		"compack":       0x02,
		"retryack":      0x03,
		"comp":          0x04,
		"compdbiderr":   0x05,
		"dbidresp":      0x06,
		"pcrdgrant":     0x07,
		"readreceipt":   0x08,
		"snprespfwded":  0x09,
	},
	ChannelSnp: {
		"snplcrdreturn": 0x00,
		"snponce":       0x06,
		"snpclean":      0x07,
		"snpshared":     0x08,
		"snpunique":     0x0C,
		"snpnotshareddirty": 0x09,
		"snpdvminv":     0x11,
	},
	ChannelDat: {
		"datlcrdreturn": 0x00,
		"snpresp":       0x01,
		"copyback":      0x04,
		"nondatasrsp":   0x05,
		"compdata":      0x06,
		"datasepresp":   0x07,
		"writedatacanforward": 0x08,
	},
}

// OpcodeName reverses opcodeTable for trace reporting: it maps a decoded
// opcode value back to its mnemonic, or reports false for an encoding with
// no named command.
func OpcodeName(ch Channel, opcode uint64) (string, bool) {
	table, ok := opcodeTable[ch]
	if !ok {
		return "", false
	}
	for name, code := range table {
		if code == opcode {
			return name, true
		}
	}
	return "", false
}
