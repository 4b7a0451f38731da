package metha

import "encoding/xml"

// Header is the OAI-PMH record header: identifier, datestamp, set membership.
type Header struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	DateStamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
}

// Metadata carries the record's metadata payload as raw, unparsed XML. The
// driver never inspects this; it is opaque and passed through to the
// RecordWriter as-is.
type Metadata struct {
	Body []byte `xml:",innerxml"`
}

// About carries optional about-section XML, also left opaque.
type About struct {
	Body []byte `xml:",innerxml"`
}

// Record is one <record> element of a ListRecords (or GetRecord) response.
type Record struct {
	Header   Header   `xml:"header"`
	Metadata Metadata `xml:"metadata"`
	About    About    `xml:"about"`
}

// ListRecordsBody is the <ListRecords> child of a response.
type ListRecordsBody struct {
	Records         []Record `xml:"record"`
	ResumptionToken string   `xml:"resumptionToken"`
}

// IdentifyBody is the <Identify> child of a response.
type IdentifyBody struct {
	RepositoryName     string   `xml:"repositoryName"`
	BaseURL            string   `xml:"baseURL"`
	ProtocolVersion    string   `xml:"protocolVersion"`
	AdminEmail         []string `xml:"adminEmail"`
	EarliestDatestamp  string   `xml:"earliestDatestamp"`
	DeletedRecord      string   `xml:"deletedRecord"`
	Granularity        string   `xml:"granularity"`
	ResponseDate       string   `xml:"-"` // filled in by the driver from the envelope's own responseDate
}

// SetBody is one <set> element of a ListSets response.
type SetBody struct {
	SetSpec        string      `xml:"setSpec"`
	SetName        string      `xml:"setName"`
	SetDescription Description `xml:"setDescription"`
}

// Description carries an optional community/about description as raw,
// unparsed XML.
type Description struct {
	Body []byte `xml:",innerxml"`
}

// ListSetsBody is the <ListSets> child of a response.
type ListSetsBody struct {
	Sets []SetBody `xml:"set"`
}

// OAIError is the <error code="..."> child of a response. A zero-value
// OAIError (empty Code) means the response carried no protocol error.
type OAIError struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

func (e OAIError) Error() string {
	return e.Code + ": " + e.Text
}

// ResponseEnvelope is the parsed OAI-PMH response tree for one request. It
// is a tagged variant: rather than probing an attribute-bag document for
// child presence, the driver reads the typed fields directly and uses the
// accessor methods below to decide which "case" the envelope represents.
type ResponseEnvelope struct {
	XMLName      xml.Name        `xml:"OAI-PMH"`
	ResponseDate string          `xml:"responseDate"`
	Error        OAIError        `xml:"error"`
	Identify     IdentifyBody    `xml:"Identify"`
	ListSets     ListSetsBody    `xml:"ListSets"`
	ListRecords  ListRecordsBody `xml:"ListRecords"`
}

// HasError reports whether this response carried a protocol-level <error>
// child, as opposed to a transport failure (which never produces an
// envelope at all).
func (r *ResponseEnvelope) HasError() bool {
	return r != nil && r.Error.Code != ""
}

// GetResumptionToken returns the resumption token carried by a ListRecords
// response, or the empty string if there is none.
func (r *ResponseEnvelope) GetResumptionToken() string {
	if r == nil {
		return ""
	}
	return r.ListRecords.ResumptionToken
}

// HasResumptionToken reports whether GetResumptionToken would return a
// non-empty value.
func (r *ResponseEnvelope) HasResumptionToken() bool {
	return r.GetResumptionToken() != ""
}
