package apuio

import "nesdis/internal/binio"

// Save writes the register file and both joypads' live state, this
// component's portion of a save-state blob.
func (a *APUIO) Save(w *binio.Writer) {
	saveJoypad(w, &a.Joypad1)
	saveJoypad(w, &a.Joypad2)

	w.WriteBytes(a.pulse1[:])
	w.WriteBytes(a.pulse2[:])
	w.WriteBytes(a.triangle[:])
	w.WriteBytes(a.noise[:])
	w.WriteBytes(a.dmc[:])
	w.WriteByte(a.channelEnable)
	w.WriteByte(a.frameCounter)

	w.WriteByte(a.oamDMAPage)
	w.WriteBool(a.oamDMAPending)
}

func (a *APUIO) Load(r *binio.Reader) {
	loadJoypad(r, &a.Joypad1)
	loadJoypad(r, &a.Joypad2)

	copy(a.pulse1[:], r.ReadBytes())
	copy(a.pulse2[:], r.ReadBytes())
	copy(a.triangle[:], r.ReadBytes())
	copy(a.noise[:], r.ReadBytes())
	copy(a.dmc[:], r.ReadBytes())
	a.channelEnable = r.ReadByte()
	a.frameCounter = r.ReadByte()

	a.oamDMAPage = r.ReadByte()
	a.oamDMAPending = r.ReadBool()
}

func saveJoypad(w *binio.Writer, j *Joypad) {
	w.WriteByte(j.buttons)
	w.WriteByte(j.shiftRegister)
	w.WriteBool(j.strobe)
}

func loadJoypad(r *binio.Reader, j *Joypad) {
	j.buttons = r.ReadByte()
	j.shiftRegister = r.ReadByte()
	j.strobe = r.ReadBool()
}
