package protocol

// ShortIDUnknown is the wire sentinel meaning "no short id assigned;
// message command is carried in long form instead".
const ShortIDUnknown byte = 0x00

// shortIDs is the normative short-message-id table. It is stored verbatim
// and indexed by position (index 0 is the unused/reserved sentinel) since
// on-wire short ids are normative and must match byte-for-byte.
var shortIDs = [...]string{
	"", // 0: reserved, use long form
	"addr",
	"block",
	"blocktxn",
	"cmpctblock",
	"feefilter",
	"filteradd",
	"filterclear",
	"filterload",
	"getblocks",
	"getblocktxn",
	"getdata",
	"getheaders",
	"headers",
	"inv",
	"mempool",
	"merkleblock",
	"notfound",
	"ping",
	"pong",
	"sendcmpct",
	"tx",
	"getcfilters",
	"cfilter",
	"getcfheaders",
	"cfheaders",
	"getcfcheckpt",
	"cfcheckpt",
	"addrv2",
}

var shortIDByCommand = func() map[string]byte {
	m := make(map[string]byte, len(shortIDs)-1)
	for id, name := range shortIDs {
		if id == 0 {
			continue
		}
		m[name] = byte(id)
	}
	return m
}()

// ShortID returns the single-byte short id for a message command, and false
// if the command has no short-id assignment (the caller must use long form).
func ShortID(command string) (byte, bool) {
	id, ok := shortIDByCommand[command]
	return id, ok
}

// CommandForShortID returns the message command for a short id, and false
// for the reserved sentinel or any id beyond the table.
func CommandForShortID(id byte) (string, bool) {
	if id == 0 || int(id) >= len(shortIDs) {
		return "", false
	}
	return shortIDs[id], true
}
