package domain

// Well-known file roles inside a working directory.
const (
	FileIncar     = "INCAR"
	FilePoscar    = "POSCAR"
	FilePotcar    = "POTCAR"
	FileKpoints   = "KPOINTS"
	FileContcar   = "CONTCAR"
	FileOutcar    = "OUTCAR"
	FileOszicar   = "OSZICAR"
	FileVasprun   = "vasprun.xml"
	FileStopcar   = "STOPCAR"
	FileContinue  = "continue.json"
	FileEOS       = "EOS.txt"
	BackupSuffix  = ".orig"
	PrevRunPrefix = "prev_run"
)

// Default capture files for the solver's standard streams.
const (
	DefaultOutputFile    = "vasp.out"
	DefaultStderrFile    = "std_err.txt"
	DefaultNEBOutputFile = "neb_vasp.out"
	DefaultNEBStderrFile = "neb_std_err.txt"
)

// InputFiles are backed up by a standard job before it runs.
var InputFiles = []string{FileIncar, FilePoscar, FilePotcar, FileKpoints}

// OutputFiles are the result files a standard job renames or copies on postprocess.
var OutputFiles = []string{
	"DOSCAR",
	FileIncar,
	FileKpoints,
	FilePoscar,
	"PROCAR",
	FileVasprun,
	"CHGCAR",
	"CHG",
	"EIGENVAL",
	FileOszicar,
	"WAVECAR",
	FileContcar,
	"IBZKPT",
	FileOutcar,
}

// NEBInputFiles are the top-level inputs of a multi-image job.
var NEBInputFiles = []string{FileIncar, FilePotcar, FileKpoints}

// NEBOutputFiles are the top-level outputs of a multi-image job.
var NEBOutputFiles = []string{FileIncar, FileKpoints, FilePotcar, FileVasprun}

// NEBImageOutputFiles are the per-image outputs of a multi-image job.
var NEBImageOutputFiles = []string{
	"CHG",
	"CHGCAR",
	FileContcar,
	"DOSCAR",
	"EIGENVAL",
	"IBZKPT",
	"PCDAT",
	FilePoscar,
	"REPORT",
	"PROCAR",
	FileOszicar,
	FileOutcar,
	"WAVECAR",
	"XDATCAR",
}

// PrevRunFiles are archived before a continued run replays its marker.
var PrevRunFiles = []string{
	FileIncar,
	FileKpoints,
	FilePoscar,
	FileOutcar,
	FileContcar,
	FileOszicar,
	FileVasprun,
	DefaultOutputFile,
	DefaultStderrFile,
}
