package stretch

// fifo is a growable sample queue with power-of-2 capacity. It is owned by
// a single goroutine (the render callback), so there is no locking.
type fifo struct {
	data     []float64
	mask     uint32
	size     int
	readPos  uint32
	writePos uint32
}

// newFIFO creates a FIFO with capacity rounded up to the nearest power of 2.
func newFIFO(capacity int) *fifo {
	cap2 := 1
	for cap2 < capacity {
		cap2 <<= 1
	}
	return &fifo{
		data: make([]float64, cap2),
		mask: uint32(cap2 - 1),
	}
}

// Write appends samples, growing the buffer when full.
func (f *fifo) Write(samples []float64) {
	for _, sample := range samples {
		if f.size >= len(f.data) {
			f.grow()
		}
		f.data[f.writePos&f.mask] = sample
		f.writePos++
		f.size++
	}
}

// WriteZeros appends n zero samples.
func (f *fifo) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		if f.size >= len(f.data) {
			f.grow()
		}
		f.data[f.writePos&f.mask] = 0
		f.writePos++
		f.size++
	}
}

// Read fills dst with up to len(dst) samples and returns the count.
func (f *fifo) Read(dst []float64) int {
	n := len(dst)
	if n > f.size {
		n = f.size
	}
	for i := 0; i < n; i++ {
		dst[i] = f.data[f.readPos&f.mask]
		f.readPos++
		f.size--
	}
	return n
}

// Discard drops up to n samples and returns the number dropped.
func (f *fifo) Discard(n int) int {
	if n > f.size {
		n = f.size
	}
	f.readPos += uint32(n)
	f.size -= n
	return n
}

// Len returns the number of buffered samples.
func (f *fifo) Len() int { return f.size }

// Clear empties the FIFO without releasing memory.
func (f *fifo) Clear() {
	f.size = 0
	f.readPos = 0
	f.writePos = 0
}

func (f *fifo) grow() {
	newData := make([]float64, len(f.data)*2)
	for i := 0; i < f.size; i++ {
		newData[i] = f.data[(f.readPos+uint32(i))&f.mask]
	}
	f.data = newData
	f.mask = uint32(len(newData) - 1)
	f.readPos = 0
	f.writePos = uint32(f.size)
}
