// Package classify maps free-text place names onto the fixed category
// taxonomy using static keyword tables.
package classify

import (
	"strings"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

var accommodationKeywords = []string{
	"숙소", "호텔", "펜션", "리조트", "모텔", "게스트하우스", "민박",
	"캠핑", "글램핑", "콘도", "아파트", "빌라",
}

var cafeKeywords = []string{
	"카페", "커피", "음료", "차", "티", "라떼", "아메리카노", "에스프레소", "쥬스", "스무디",
}

var restaurantKeywords = []string{
	"식당", "맛집", "레스토랑", "점심", "저녁", "아침", "식사",
	"막국수", "해장국", "국수", "냉면", "라면", "김치찌개", "된장찌개", "비빔밥", "불고기", "갈비",
	"치킨", "피자", "햄버거", "샐러드", "파스타", "스테이크", "초밥", "회", "생선", "고기",
	"떡볶이", "순대", "김밥", "만두", "전", "부침개", "찜", "탕", "찌개", "국",
	"밥", "죽", "면", "빵", "케이크", "디저트", "아이스크림", "과자", "과일", "야채",
	"술", "맥주", "소주", "와인", "칵테일", "바", "펍", "이자카야", "포차",
}

var touristKeywords = []string{
	"공원", "박물관", "미술관", "전시관", "갤러리", "문화관", "예술관", "기념관", "기념탑",
	"사찰", "절", "교회", "성당", "사원", "궁", "궁전", "성", "성벽", "문",
	"탑", "다리", "교", "광장", "시장", "상가", "쇼핑", "마트", "백화점",
	"해변", "바다", "산", "봉", "봉우리", "계곡", "폭포", "호수", "강", "섬",
	"동물원", "식물원", "수목원", "아쿠아리움", "테마파크", "놀이공원", "워터파크", "스키장",
	"온천", "스파", "찜질방", "사우나", "헬스", "피트니스", "골프", "테니스",
	"캠핑장", "야영장", "관광지", "명소", "유적", "유적지", "문화재", "보물",
}

// Priority order is a deliberate tie-break: accommodation first, then cafe
// before restaurant so names like "OO카페" are not captured by the much
// broader restaurant food-term list.
var ordered = []struct {
	category types.Category
	keywords []string
}{
	{types.CategoryAccommodation, accommodationKeywords},
	{types.CategoryCafe, cafeKeywords},
	{types.CategoryRestaurant, restaurantKeywords},
	{types.CategoryTouristSite, touristKeywords},
}

// Place classifies a place name, optionally helped by an activity label
// ("점심", "체크인", ...). The first category with a keyword substring match
// in either string wins; no match means Other.
func Place(placeName, activityHint string) types.Category {
	name := strings.ToLower(placeName)
	hint := strings.ToLower(activityHint)

	for _, entry := range ordered {
		for _, keyword := range entry.keywords {
			if strings.Contains(name, keyword) || strings.Contains(hint, keyword) {
				return entry.category
			}
		}
	}
	return types.CategoryOther
}
