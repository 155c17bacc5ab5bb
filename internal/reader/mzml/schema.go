package mzml

import "encoding/xml"

// The subset of the mzML schema this backend reads. Tags not needed for
// spectrum extraction are left undeclared and skipped by the decoder.

type mzMLContent struct {
	XMLName xml.Name `xml:"mzML"`
	Run     run      `xml:"run"`
}

type run struct {
	ID           string       `xml:"id,attr,omitempty"`
	SpectrumList spectrumList `xml:"spectrumList"`
}

type spectrumList struct {
	Count    int           `xml:"count,attr,omitempty"`
	Spectrum []xmlSpectrum `xml:"spectrum"`
}

type xmlSpectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	DefaultArrayLength  int64               `xml:"defaultArrayLength,attr"`
	CvPar               []cvParam           `xml:"cvParam"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       []precursorList     `xml:"precursorList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type scanList struct {
	Count int       `xml:"count,attr,omitempty"`
	CvPar []cvParam `xml:"cvParam"`
	Scan  []scan    `xml:"scan"`
}

type scan struct {
	CvPar []cvParam `xml:"cvParam"`
}

type precursorList struct {
	Count     int            `xml:"count,attr,omitempty"`
	Precursor []xmlPrecursor `xml:"precursor"`
}

type xmlPrecursor struct {
	SpectrumRef     string          `xml:"spectrumRef,attr,omitempty"`
	SelectedIonList selectedIonList `xml:"selectedIonList"`
}

type selectedIonList struct {
	Count       int           `xml:"count,attr,omitempty"`
	SelectedIon []selectedIon `xml:"selectedIon"`
}

type selectedIon struct {
	CvPar []cvParam `xml:"cvParam"`
}

type binaryDataArrayList struct {
	Count           int               `xml:"count,attr,omitempty"`
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr,omitempty"`
	ArrayLength   int       `xml:"arrayLength,attr,omitempty"`
	CvPar         []cvParam `xml:"cvParam"`
	Binary        string    `xml:"binary"`
}

// cvParam carries one controlled-vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html).
type cvParam struct {
	Accession     string `xml:"accession,attr,omitempty"`
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	UnitCvRef     string `xml:"unitCvRef,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}
