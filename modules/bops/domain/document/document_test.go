package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Minimal real file headers so content sniffing has something to match.
var (
	pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	jpgHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)

func TestValidateSupportingFile_AllowedTypes(t *testing.T) {
	require.NoError(t, ValidateSupportingFile("withdrawal-letter.pdf", pdfHeader))
	require.NoError(t, ValidateSupportingFile("site-photo.png", pngHeader))
	require.NoError(t, ValidateSupportingFile("site-photo.jpg", jpgHeader))
	require.NoError(t, ValidateSupportingFile("site-photo.jpeg", jpgHeader))
}

func TestValidateSupportingFile_ExtensionCaseInsensitive(t *testing.T) {
	require.NoError(t, ValidateSupportingFile("LETTER.PDF", pdfHeader))
}

func TestValidateSupportingFile_RejectsOtherTypes(t *testing.T) {
	for _, name := range []string{"letter.docx", "archive.zip", "notes.txt", "noextension"} {
		err := ValidateSupportingFile(name, nil)
		require.ErrorIs(t, err, ErrUnsupportedFileType)
		require.EqualError(t, err, "must be a PDF, JPG or PNG")
	}
}

func TestValidateSupportingFile_SniffedTypeMustMatchExtension(t *testing.T) {
	// A zip body renamed to .pdf does not pass.
	zipHeader := []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x00, 0x00}
	require.ErrorIs(t, ValidateSupportingFile("letter.pdf", zipHeader), ErrUnsupportedFileType)
}

func TestValidateSupportingFile_NoContentChecksExtensionOnly(t *testing.T) {
	// Metadata-only validation happens before the upload body arrives.
	require.NoError(t, ValidateSupportingFile("letter.pdf", nil))
}
