package device

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/notargets/MGKernel/box"
	"github.com/notargets/MGKernel/linop"
	"github.com/notargets/MGKernel/partitions"
	"github.com/notargets/gocca"
	"github.com/sirupsen/logrus"
)

const kernelName = "abecApply"

// ABecKernel evaluates linop.ABec's Apply on an OCCA device. Every owned patch
// of a level is one outer iteration; the cells of a patch are inner
// iterations. Level geometry and ghost widths are compiled into the kernel.
type ABecKernel struct {
	Device  *gocca.OCCADevice
	op      *linop.ABec
	kernels map[kernelKey]*gocca.OCCAKernel
	log     logrus.FieldLogger
}

type kernelKey struct {
	level, inGhost, outGhost int
}

func NewABecKernel(dev *gocca.OCCADevice, op *linop.ABec, log logrus.FieldLogger) *ABecKernel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ABecKernel{
		Device:  dev,
		op:      op,
		kernels: make(map[kernelKey]*gocca.OCCAKernel),
		log:     log.WithField("component", "device"),
	}
}

// Source returns the OKL source of the apply kernel for level, reading input
// with inGhost ghost layers and writing output with outGhost ghost layers
func (k *ABecKernel) Source(level, inGhost, outGhost int) string {
	layout := k.op.Layout(level)
	geom := k.op.Registry().Geometry(level)
	dim := layout.Dim()
	cellMax := 1
	for _, b := range layout.OwnedBoxes() {
		cellMax = max(cellMax, layout.Boxes[b].NumPts())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "#define DIM %d\n", dim)
	fmt.Fprintf(&sb, "#define NPART %d\n", max(1, len(layout.OwnedBoxes())))
	fmt.Fprintf(&sb, "#define CELLMAX %d\n", cellMax)
	for d := 0; d < box.MaxDim; d++ {
		gin, gout := 0, 0
		if d < dim {
			gin, gout = inGhost, outGhost
		}
		fmt.Fprintf(&sb, "#define GIN%d %d\n", d, gin)
		fmt.Fprintf(&sb, "#define GOUT%d %d\n", d, gout)
		h := geom.CellSize[d]
		fmt.Fprintf(&sb, "#define IH%d %.17g\n", d, 1/(h*h))
	}
	sb.WriteString(abecBody)
	return sb.String()
}

const abecBody = `
@kernel void abecApply(const int *shape,
                       const int *inOff, const int *outOff,
                       const int *aOff, const int *b0Off, const int *b1Off, const int *b2Off,
                       const double *in, const double *acoef,
                       const double *b0, const double *b1, const double *b2,
                       double *out,
                       const double alpha, const double beta) {
  for (int part = 0; part < NPART; ++part; @outer) {
    for (int c = 0; c < CELLMAX; ++c; @inner) {
      const int nx = shape[3*part];
      const int ny = shape[3*part + 1];
      const int nz = shape[3*part + 2];
      if (c < nx*ny*nz) {
        const int i = c % nx;
        const int j = (c / nx) % ny;
        const int k = c / (nx*ny);
        const int gx = nx + 2*GIN0;
        const int gy = ny + 2*GIN1;
        const int p = inOff[part] + (i + GIN0) + gx*((j + GIN1) + gy*(k + GIN2));
        const double phi = in[p];
        const double a = acoef[aOff[part] + c];

        const int f0 = b0Off[part] + i + (nx + 1)*(j + ny*k);
        double lap = (b0[f0 + 1]*(in[p + 1] - phi) - b0[f0]*(phi - in[p - 1]))*IH0;
#if DIM > 1
        const int f1 = b1Off[part] + i + nx*(j + (ny + 1)*k);
        lap += (b1[f1 + nx]*(in[p + gx] - phi) - b1[f1]*(phi - in[p - gx]))*IH1;
#endif
#if DIM > 2
        const int f2 = b2Off[part] + c;
        lap += (b2[f2 + nx*ny]*(in[p + gx*gy] - phi) - b2[f2]*(phi - in[p - gx*gy]))*IH2;
#endif
        const int ox = nx + 2*GOUT0;
        const int oy = ny + 2*GOUT1;
        out[outOff[part] + (i + GOUT0) + ox*((j + GOUT1) + oy*(k + GOUT2))] = alpha*a*phi - beta*lap;
      }
    }
  }
}
`

// BuildKernel compiles the apply kernel for the given level and ghost widths,
// reusing an earlier build
func (k *ABecKernel) BuildKernel(level, inGhost, outGhost int) (*gocca.OCCAKernel, error) {
	key := kernelKey{level, inGhost, outGhost}
	if kern, ok := k.kernels[key]; ok {
		return kern, nil
	}
	src := k.Source(level, inGhost, outGhost)
	var (
		kern *gocca.OCCAKernel
		err  error
	)
	if k.Device.Mode() == "OpenMP" {
		// OpenMP builds do not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kern, err = k.Device.BuildKernelFromString(src, kernelName, props)
	} else {
		kern, err = k.Device.BuildKernelFromString(src, kernelName, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s for level %d: %w", kernelName, level, err)
	}
	if kern == nil {
		return nil, fmt.Errorf("kernel build returned nil for level %d", level)
	}
	k.kernels[key] = kern
	k.log.WithFields(logrus.Fields{"level": level, "in_ghost": inGhost, "out_ghost": outGhost}).Debug("built kernel")
	return kern, nil
}

// Apply computes out = L(in) on level for components [srcComp, srcComp+numComp)
// of in into [dstComp, dstComp+numComp) of out. in needs one filled ghost layer.
func (k *ABecKernel) Apply(out, in *partitions.PartitionedArray, level, srcComp, dstComp, numComp int) error {
	layout := k.op.Layout(level)
	switch {
	case in.NGhost < 1:
		return fmt.Errorf("input has %d ghost layers, need 1", in.NGhost)
	case !in.Layout.SameAs(layout) || !out.Layout.SameAs(layout):
		return fmt.Errorf("arrays do not live on the layout of level %d", level)
	case !in.IsCellCentered() || !out.IsCellCentered():
		return fmt.Errorf("arrays must be cell-centered")
	case srcComp < 0 || dstComp < 0 || numComp < 1 || srcComp+numComp > in.NComp || dstComp+numComp > out.NComp:
		return fmt.Errorf("component ranges [%d,%d) -> [%d,%d) do not fit %d -> %d components",
			srcComp, srcComp+numComp, dstComp, dstComp+numComp, in.NComp, out.NComp)
	}
	npart := in.NumPatches()
	if npart == 0 {
		return nil
	}
	kern, err := k.BuildKernel(level, in.NGhost, out.NGhost)
	if err != nil {
		return err
	}

	k.op.PrepareForLevel(level)
	coefs := k.op.Coefficients()
	aData, aOffsets := coefs.A(level).Global()
	var bData [box.MaxDim][]float64
	var bOffsets [box.MaxDim][]int
	for d := 0; d < layout.Dim(); d++ {
		bData[d], bOffsets[d] = coefs.B(d, level).Global()
	}
	for d := layout.Dim(); d < box.MaxDim; d++ {
		bData[d], bOffsets[d] = bData[0], bOffsets[0]
	}

	shape := make([]int32, 3*npart)
	for i := 0; i < npart; i++ {
		sz := in.ValidBox(i).Size()
		for d := 0; d < 3; d++ {
			shape[3*i+d] = int32(max(1, sz[d]))
		}
	}

	var mems []*gocca.OCCAMemory
	defer func() {
		for _, m := range mems {
			m.Free()
		}
	}()
	upload := func(data []float64) *gocca.OCCAMemory {
		m := k.Device.Malloc(int64(len(data)*8), unsafe.Pointer(&data[0]), nil)
		mems = append(mems, m)
		return m
	}
	uploadInt := func(data []int32) *gocca.OCCAMemory {
		m := k.Device.Malloc(int64(len(data)*4), unsafe.Pointer(&data[0]), nil)
		mems = append(mems, m)
		return m
	}

	shapeMem := uploadInt(shape)
	aOffMem := uploadInt(patchOffsets(aOffsets, nil, 0))
	var bOffMem [box.MaxDim]*gocca.OCCAMemory
	var bMem [box.MaxDim]*gocca.OCCAMemory
	for d := 0; d < box.MaxDim; d++ {
		bOffMem[d] = uploadInt(patchOffsets(bOffsets[d], nil, 0))
		bMem[d] = upload(bData[d])
	}
	aMem := upload(aData)
	inMem := upload(in.GlobalData)
	outMem := upload(out.GlobalData)

	alpha, beta := k.op.Scalars()
	for n := 0; n < numComp; n++ {
		inOff := uploadInt(patchOffsets(in.Offsets, in, srcComp+n))
		outOff := uploadInt(patchOffsets(out.Offsets, out, dstComp+n))
		if err := kern.RunWithArgs(shapeMem, inOff, outOff, aOffMem, bOffMem[0], bOffMem[1], bOffMem[2],
			inMem, aMem, bMem[0], bMem[1], bMem[2], outMem, alpha, beta); err != nil {
			return fmt.Errorf("kernel execution failed: %w", err)
		}
	}
	k.Device.Finish()
	outMem.CopyTo(unsafe.Pointer(&out.GlobalData[0]), int64(len(out.GlobalData)*8))
	return nil
}

// patchOffsets returns the start of component comp of every patch of pa as
// int32 device offsets; with pa nil, the patch starts in offsets
func patchOffsets(offsets []int, pa *partitions.PartitionedArray, comp int) []int32 {
	res := make([]int32, len(offsets)-1)
	for i := range res {
		off := offsets[i]
		if pa != nil {
			off += comp * pa.FabBox(i).NumPts()
		}
		res[i] = int32(off)
	}
	return res
}

// Free releases the compiled kernels; the device stays with the caller
func (k *ABecKernel) Free() {
	for key, kern := range k.kernels {
		kern.Free()
		delete(k.kernels, key)
	}
}
