package lsm6dsox

// Register addresses
const (
	FuncCfgAccess  = 0x01
	FIFOCtrl1      = 0x07
	FIFOCtrl2      = 0x08
	FIFOCtrl3      = 0x09
	FIFOCtrl4      = 0x0A
	RegWhoAmI      = 0x0F
	Ctrl1XL        = 0x10
	Ctrl2G         = 0x11
	Ctrl3C         = 0x12
	Ctrl10C        = 0x19
	FIFOStatus1    = 0x3A
	FIFOStatus2    = 0x3B
	FIFODataOutTag = 0x78
)

// Embedded function bank. These addresses only reach the embedded registers
// while FuncCfgAccess has EmbeddedAccess set.
const (
	EmbFuncEnA      = 0x04
	EmbFuncEnB      = 0x05
	SensorHubEnable = 0x14
)

// Device constants
const (
	Addr    = 0x6A
	AddrAlt = 0x6B
	WhoAmI  = 0x6C

	// RecordSize is the size of one tagged FIFO record.
	RecordSize = 7
	// MaxLevel is the largest count DIFF_FIFO can report.
	MaxLevel = 1023
	// MaxWatermark is the largest value WTM[8:0] can hold.
	MaxWatermark = 511
)

// Settings
const (
	SoftwareReset  byte = 0b0000_0001
	TimestampEna   byte = 0b0010_0000
	EmbeddedAccess byte = 0b1000_0000
	wtm8           byte = 0b0000_0001

	odrMask   byte = 0b1111_0000
	rangeMask byte = 0b0000_1100
	modeMask  byte = 0b0000_0111
	levelMask byte = 0b0000_0011
)

// FIFO status flags (FIFOStatus2)
const (
	WatermarkReached byte = (1 << 7)
	Overrun          byte = (1 << 6)
	Full             byte = (1 << 5)
	OverrunLatched   byte = (1 << 3)
)
