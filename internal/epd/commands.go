package epd

// command is a register opcode of the SSD1608-class controller driving the
// 2.9" panel. The full datasheet set is listed; the init and refresh
// sequences use only part of it.
type command byte

const (
	driverOutputControl            command = 0x01
	boosterSoftStartControl        command = 0x0C
	gateScanStartPosition          command = 0x0F
	deepSleepMode                  command = 0x10
	dataEntryModeSetting           command = 0x11
	swReset                        command = 0x12
	temperatureSensorControl       command = 0x1A
	masterActivation               command = 0x20
	displayUpdateControl1          command = 0x21
	displayUpdateControl2          command = 0x22
	writeRAM                       command = 0x24
	writeVCOMRegister              command = 0x2C
	writeLUTRegister               command = 0x32
	setDummyLinePeriod             command = 0x3A
	setGateTime                    command = 0x3B
	borderWaveformControl          command = 0x3C
	setRAMXAddressStartEndPosition command = 0x44
	setRAMYAddressStartEndPosition command = 0x45
	setRAMXAddressCounter          command = 0x4E
	setRAMYAddressCounter          command = 0x4F
	terminateFrameReadWrite        command = 0xFF
)
