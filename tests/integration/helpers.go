// Package integration exercises whole runs over fixture directories: the
// batch transformer, the mapping table generator and the prefix populator,
// driven through the same public APIs the CLI commands call.
package integration

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
	"github.com/IKNL/PZP-FHIR-STU3/transform"
)

// WriteFixture writes one fixture document into dir and returns its path.
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// RunTransform runs a full batch transformation over the input directories
// and fails the test on a run-level error.
func RunTransform(t *testing.T, inputDirs []string, outputDir string) *transform.Result {
	t.Helper()

	res, err := transform.Run(transform.Options{
		InputDirs: inputDirs,
		OutputDir: outputDir,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Transform run failed: %v", err)
	}
	return res
}

// ReadConverted parses the converted counterpart of the named input file
// from the output directory.
func ReadConverted(t *testing.T, outputDir, name string) fhir.Resource {
	t.Helper()

	doc, err := fhir.ReadFile(filepath.Join(outputDir, transform.OutputPrefix+name))
	if err != nil {
		t.Fatalf("Failed to read converted document %s: %v", name, err)
	}
	return doc
}

// FirstEntry returns the first element of a document array field as an
// object, failing the test when the field is missing or not an array.
func FirstEntry(t *testing.T, doc map[string]interface{}, field string) map[string]interface{} {
	t.Helper()

	arr, ok := doc[field].([]interface{})
	if !ok || len(arr) == 0 {
		t.Fatalf("Expected %s to be a non-empty array, got %T", field, doc[field])
	}
	obj, ok := arr[0].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected %s[0] to be an object, got %T", field, arr[0])
	}
	return obj
}

// CreatePatientDocument returns an R4 patient whose general practitioner
// points at the practitioner role fixture. The relatedPerson extension has
// no STU3 counterpart and must disappear during conversion.
func CreatePatientDocument() string {
	return `{
  "resourceType": "Patient",
  "id": "anna-jansen",
  "meta": {
    "profile": ["http://nictiz.nl/fhir/StructureDefinition/nl-core-patient"]
  },
  "extension": [
    {
      "url": "http://hl7.org/fhir/StructureDefinition/patient-relatedPerson",
      "valueReference": {"reference": "RelatedPerson/piet-jansen"}
    }
  ],
  "identifier": [
    {"system": "http://fhir.nl/fhir/NamingSystem/bsn", "value": "999911120"}
  ],
  "name": [
    {"use": "official", "family": "Jansen", "given": ["Anna"]}
  ],
  "gender": "female",
  "birthDate": "1953-04-12",
  "generalPractitioner": [
    {
      "reference": "PractitionerRole/huisarts-vos",
      "type": "PractitionerRole",
      "display": "J. Vos, huisarts"
    }
  ]
}`
}

// CreateRoleDocument returns the practitioner role the patient fixture
// references. The availableTime entry carries an id field STU3 drops.
func CreateRoleDocument() string {
	return `{
  "resourceType": "PractitionerRole",
  "id": "huisarts-vos",
  "practitioner": {"reference": "Practitioner/j-vos", "display": "J. Vos"},
  "specialty": [
    {
      "coding": [
        {"system": "urn:oid:2.16.840.1.113883.2.4.6.7", "code": "0100", "display": "Huisartsen"}
      ]
    }
  ],
  "availableTime": [
    {"id": "ochtend", "daysOfWeek": ["mon", "tue"], "availableStartTime": "08:30:00", "availableEndTime": "12:30:00"}
  ]
}`
}

// CreateTreatmentDirectiveDocument returns an R4 treatment directive whose
// provision denies resuscitation, verified with the patient.
func CreateTreatmentDirectiveDocument() string {
	return `{
  "resourceType": "Consent",
  "id": "behandelaanwijzing-reanimatie",
  "status": "active",
  "scope": {
    "coding": [
      {"system": "http://terminology.hl7.org/CodeSystem/consentscope", "code": "treatment"}
    ]
  },
  "category": [
    {
      "coding": [
        {"system": "http://snomed.info/sct", "code": "129125009", "display": "Procedure consent"}
      ]
    }
  ],
  "patient": {"reference": "Patient/anna-jansen", "display": "Anna Jansen"},
  "dateTime": "2024-03-18",
  "provision": {
    "type": "deny",
    "actor": [
      {
        "role": {
          "coding": [
            {"system": "http://terminology.hl7.org/CodeSystem/v3-RoleCode", "code": "CONSENTER"}
          ]
        },
        "reference": {"reference": "Patient/anna-jansen", "type": "Patient"}
      }
    ],
    "code": [
      {
        "coding": [
          {"system": "http://snomed.info/sct", "code": "89666000", "display": "Cardiopulmonary resuscitation"}
        ]
      }
    ],
    "period": {"start": "2024-03-18", "end": "2026-03-18"}
  }
}`
}

// CreateValueSetDocument returns a terminology document that is published
// as-is and never converted.
func CreateValueSetDocument() string {
	return `{
  "resourceType": "ValueSet",
  "id": "wilsverklaring-typen",
  "status": "active",
  "compose": {
    "include": [
      {"system": "http://snomed.info/sct", "concept": [{"code": "129125009"}]}
    ]
  }
}`
}

// CreateQuestionnaireDocument returns a questionnaire whose item texts still
// carry their display prefixes inline.
func CreateQuestionnaireDocument() string {
	return `{
  "resourceType": "Questionnaire",
  "id": "acp-wensen-en-grenzen",
  "status": "active",
  "item": [
    {"linkId": "1", "text": "1. Wat weet u van uw ziekte?", "type": "string"},
    {
      "linkId": "2",
      "text": "Zorgen en wensen",
      "type": "group",
      "item": [
        {"linkId": "2.1", "text": "a) Waar maakt u zich zorgen over?", "type": "text"}
      ]
    }
  ]
}`
}

// CreateResponseDocument returns a response whose item text repeats the
// questionnaire prefix inline.
func CreateResponseDocument() string {
	return `{
  "resourceType": "QuestionnaireResponse",
  "id": "acp-wensen-antwoorden",
  "status": "completed",
  "item": [
    {
      "linkId": "1",
      "text": "1. Wat weet u van uw ziekte?",
      "answer": [{"valueString": "Ik weet dat genezing niet meer mogelijk is."}]
    }
  ]
}`
}

// CreateWilsverklaringDefinition returns a profile mapping two dataset
// concepts, 290 on the root and 291 on the category element.
func CreateWilsverklaringDefinition() string {
	return `{
  "resourceType": "StructureDefinition",
  "id": "ACP-Wilsverklaring",
  "name": "ACPWilsverklaring",
  "status": "active",
  "type": "Consent",
  "mapping": [
    {
      "identity": "informatiestandaard_obv_zibs2017",
      "uri": "https://decor.nictiz.nl/ad/#/pall-izppz-/datasets/dataset",
      "name": "Informatiestandaard obv zibs2017"
    }
  ],
  "differential": {
    "element": [
      {
        "id": "Consent",
        "path": "Consent",
        "mapping": [
          {"identity": "informatiestandaard_obv_zibs2017", "map": "290 Wilsverklaring"}
        ]
      },
      {
        "id": "Consent.category",
        "path": "Consent.category",
        "mapping": [
          {"identity": "informatiestandaard_obv_zibs2017", "map": "291 WilsverklaringType"}
        ]
      }
    ]
  }
}`
}

// CreateBehandelaanwijzingDefinition returns a profile mapping concept 282
// plus an id the dataset does not know, which must surface as an orphan.
func CreateBehandelaanwijzingDefinition() string {
	return `{
  "resourceType": "StructureDefinition",
  "id": "ACP-Behandelaanwijzing",
  "name": "ACPBehandelaanwijzing",
  "status": "active",
  "type": "Consent",
  "mapping": [
    {
      "identity": "informatiestandaard_obv_zibs2017",
      "uri": "https://decor.nictiz.nl/ad/#/pall-izppz-/datasets/dataset",
      "name": "Informatiestandaard obv zibs2017"
    }
  ],
  "differential": {
    "element": [
      {
        "id": "Consent.except",
        "path": "Consent.except",
        "mapping": [
          {"identity": "informatiestandaard_obv_zibs2017", "map": "282 Behandelaanwijzing"}
        ]
      },
      {
        "id": "Consent.period",
        "path": "Consent.period",
        "mapping": [
          {"identity": "informatiestandaard_obv_zibs2017", "map": "999 Geldigheidsperiode"}
        ]
      }
    ]
  }
}`
}

// CreateDatasetDocument returns a dataset definition with three mapped
// concepts and one, 285, that no profile maps.
func CreateDatasetDocument() string {
	return `{
  "concept": [
    {
      "id": "2.16.840.1.113883.2.4.3.11.60.117.1.1",
      "shortName": "informatiestandaard_obv_zibs2017",
      "concept": [
        {
          "id": "2.16.840.1.113883.2.4.3.11.60.117.2.282",
          "name": [{"language": "nl-NL", "#text": "Behandelaanwijzing"}]
        },
        {
          "id": "2.16.840.1.113883.2.4.3.11.60.117.2.285",
          "name": [{"language": "nl-NL", "#text": "Zorgproces"}]
        },
        {
          "id": "2.16.840.1.113883.2.4.3.11.60.117.2.290",
          "name": [{"language": "nl-NL", "#text": "Wilsverklaring"}],
          "concept": [
            {
              "id": "2.16.840.1.113883.2.4.3.11.60.117.2.291",
              "name": [{"language": "nl-NL", "#text": "WilsverklaringType"}]
            }
          ]
        }
      ]
    }
  ]
}`
}
